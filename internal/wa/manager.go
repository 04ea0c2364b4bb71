package wa

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/zeladorbot/zelador/internal/config"
	"github.com/zeladorbot/zelador/internal/intake"
	"github.com/zeladorbot/zelador/internal/policy"
)

// Manager runs one or two sessions and routes their events to the
// moderation engine and the message intake.
type Manager struct {
	cfg    *config.Config
	engine *policy.Engine
	intake *intake.Handler

	primary   *Session
	secondary *Session

	mu   sync.Mutex
	next int
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, engine *policy.Engine, in *intake.Handler) *Manager {
	return &Manager{cfg: cfg, engine: engine, intake: in}
}

// Start boots the primary session, and the secondary one in dual mode, then
// blocks until every configured session has connected once.
func (m *Manager) Start(ctx context.Context) error {
	m.primary = NewSession(SessionConfig{
		Role:        RolePrimary,
		AuthDir:     filepath.Join(m.cfg.Paths.AuthDir, string(RolePrimary)),
		PairCode:    m.cfg.Bot.PairCode,
		Phone:       m.cfg.Bot.Phone,
		SendTimeout: m.cfg.Cache.SendTimeout,
	})
	m.primary.Handler = m.eventHandler(m.primary)
	if err := m.primary.Start(ctx); err != nil {
		return err
	}

	if m.cfg.Bot.DualMode {
		m.secondary = NewSession(SessionConfig{
			Role:        RoleSecondary,
			AuthDir:     filepath.Join(m.cfg.Paths.AuthDir, string(RoleSecondary)),
			PairCode:    m.cfg.Bot.PairCode,
			Phone:       m.cfg.Bot.SecondaryPhone,
			SendTimeout: m.cfg.Cache.SendTimeout,
		})
		m.secondary.Handler = m.eventHandler(m.secondary)
		if err := m.secondary.Start(ctx); err != nil {
			m.primary.Stop()
			return err
		}
	}

	// Readiness barrier: both sessions must open before work starts.
	if err := m.primary.WaitConnected(ctx); err != nil {
		m.Stop()
		return err
	}
	if m.secondary != nil {
		if err := m.secondary.WaitConnected(ctx); err != nil {
			m.Stop()
			return err
		}
	}

	fmt.Printf("🤖 zelador online: prefix=%q owner=%s dual=%v\n",
		m.cfg.Bot.Prefix, m.cfg.Bot.Owner, m.cfg.Bot.DualMode)
	return nil
}

// Stop shuts down all sessions.
func (m *Manager) Stop() {
	if m.primary != nil {
		m.primary.Stop()
	}
	if m.secondary != nil {
		m.secondary.Stop()
	}
}

// Messenger returns the session that should carry the next outbound send.
// In dual mode the choice alternates, falling back to the primary when the
// secondary is not open.
func (m *Manager) Messenger() policy.Messenger {
	return m.pick()
}

func (m *Manager) pick() *Session {
	if m.secondary == nil {
		return m.primary
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = (m.next + 1) % 2
	if m.next == 1 && m.secondary.Connected() {
		return m.secondary
	}
	return m.primary
}

func (m *Manager) eventHandler(s *Session) func(evt interface{}) {
	return func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			if v.Info.IsFromMe {
				return
			}
			// The router replies through the alternating forwarding
			// identity, not necessarily the session that saw the message.
			m.intake.HandleMessage(context.Background(), m.Messenger(), v)
		case *events.GroupInfo:
			// Any group update (rename, new description, membership)
			// invalidates cached metadata so the next read is fresh.
			m.engine.Groups.Delete(v.JID.String())
			// Membership moderation runs from the primary only, so dual
			// mode never doubles removals or announcements.
			if s.Role() != RolePrimary {
				return
			}
			m.handleGroupChange(s, v)
		case *events.HistorySync:
			// Backfill is irrelevant for live moderation.
		}
	}
}

func (m *Manager) handleGroupChange(s *Session, v *events.GroupInfo) {
	ctx := context.Background()
	for _, ev := range membershipEvents(v) {
		ev.SessionRole = string(s.Role())
		m.engine.HandleMembership(ctx, s, ev)
	}
}

// membershipEvents splits one group notification into per-action events.
func membershipEvents(v *events.GroupInfo) []policy.MembershipEvent {
	var out []policy.MembershipEvent
	add := func(action policy.Action, participants []types.JID) {
		if len(participants) == 0 {
			return
		}
		out = append(out, policy.MembershipEvent{
			GroupJID:     v.JID,
			Action:       action,
			Participants: participants,
			Author:       v.Sender,
		})
	}
	add(policy.ActionAdd, v.Join)
	add(policy.ActionRemove, v.Leave)
	add(policy.ActionPromote, v.Promote)
	add(policy.ActionDemote, v.Demote)
	return out
}
