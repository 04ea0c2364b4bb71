// Package intake receives inbound messages from a session and forwards
// them to the command router, deduplicating by message ID on the way.
package intake

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/zeladorbot/zelador/internal/cache"
	"github.com/zeladorbot/zelador/internal/policy"
)

// Router consumes inbound messages. It receives the session picked to
// carry any reply and the shared caches so command handlers can answer
// and look up group state without extra round-trips. Errors stay inside
// the router boundary.
type Router interface {
	Handle(ctx context.Context, active policy.Messenger, msg *events.Message, groups *cache.GroupCache, dedup *cache.DedupCache) error
}

// Handler buffers and forwards inbound messages.
type Handler struct {
	Dedup  *cache.DedupCache
	Groups *cache.GroupCache
	Router Router
}

// NewHandler creates a message intake handler.
func NewHandler(dedup *cache.DedupCache, groups *cache.GroupCache, router Router) *Handler {
	return &Handler{Dedup: dedup, Groups: groups, Router: router}
}

// HandleMessage stores the message for later lookup and hands it to the
// router. Messages without a payload or chat are dropped. A message id
// already in the cache still has its payload updated (latest payload
// wins) but is not forwarded again: in dual mode both sessions receive
// the same group messages. Router errors are logged and never propagate
// to the session event loop.
func (h *Handler) HandleMessage(ctx context.Context, active policy.Messenger, msg *events.Message) {
	if msg == nil || msg.Message == nil {
		return
	}
	if msg.Info.Chat.IsEmpty() {
		return
	}
	forward := true
	if h.Dedup != nil {
		if _, seen := h.Dedup.Get(msg.Info.ID); seen {
			forward = false
		}
		h.Dedup.Put(msg.Info.ID, msg)
	}
	if !forward || h.Router == nil {
		return
	}
	if err := h.Router.Handle(ctx, active, msg, h.Groups, h.Dedup); err != nil {
		fmt.Printf("⚠️ router failed for message %s in %s: %v\n", msg.Info.ID, msg.Info.Chat, err)
	}
}
