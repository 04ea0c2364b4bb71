// Package policy evaluates group membership events against per-group
// moderation config and executes the resulting outbound actions.
package policy

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"

	"github.com/zeladorbot/zelador/internal/audit"
	"github.com/zeladorbot/zelador/internal/banner"
	"github.com/zeladorbot/zelador/internal/cache"
	"github.com/zeladorbot/zelador/internal/groupcfg"
	"github.com/zeladorbot/zelador/internal/modlog"
	"github.com/zeladorbot/zelador/internal/notify"
)

// Action is the membership change kind.
type Action string

const (
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionPromote Action = "promote"
	ActionDemote  Action = "demote"
)

// MembershipEvent is one group membership change. Only the first affected
// participant is acted upon.
type MembershipEvent struct {
	GroupJID     types.JID
	Action       Action
	Participants []types.JID
	Author       *types.JID
	SessionRole  string
}

// Messenger is the outbound surface of the active session.
type Messenger interface {
	SelfJID() types.JID
	SendText(ctx context.Context, chat types.JID, text string, mentions []string) error
	SendImage(ctx context.Context, chat types.JID, image []byte, caption string, mentions []string) error
	RemoveParticipant(ctx context.Context, group, participant types.JID) error
	GroupInfo(ctx context.Context, group types.JID) (*types.GroupInfo, error)
	ProfilePictureURL(ctx context.Context, participant types.JID) (string, error)
}

// ConfigSource loads per-group config. Loading happens on every event;
// absence means "no policy configured".
type ConfigSource interface {
	Load(groupID string) (*groupcfg.GroupConfig, bool)
}

// portugalPrefix is the country-code prefix caught by the anti-PT rule.
const portugalPrefix = "351"

// Engine evaluates the ordered moderation rules. ModLog, Audit and Alerts
// are optional; a nil field disables that sink.
type Engine struct {
	Configs ConfigSource
	Groups  *cache.GroupCache
	Banner  banner.Renderer
	Images  banner.Fetcher
	// StockAvatar replaces the profile picture when the fetch fails.
	StockAvatar string
	// AllowedDDIs are the two-digit prefixes the anti-fake rule accepts.
	AllowedDDIs []string
	ModLog      *modlog.Service
	Audit       *audit.Publisher
	Alerts      *notify.SlackNotifier
}

// NewEngine creates an engine with the default anti-fake allow-set.
func NewEngine(configs ConfigSource, groups *cache.GroupCache, images *banner.HTTPClient, stockAvatar string) *Engine {
	return &Engine{
		Configs:     configs,
		Groups:      groups,
		Banner:      images,
		Images:      images,
		StockAvatar: stockAvatar,
		AllowedDDIs: []string{"55", "35"},
	}
}

// HandleMembership runs the rule set for one event. All errors are logged
// and contained; nothing propagates to the session event loop.
func (e *Engine) HandleMembership(ctx context.Context, m Messenger, ev MembershipEvent) {
	if len(ev.Participants) == 0 {
		return
	}
	target := ev.Participants[0]
	if target.User == m.SelfJID().User {
		// Never react to the bot's own membership changes.
		return
	}

	cfg, ok := e.Configs.Load(ev.GroupJID.String())
	if !ok {
		return
	}

	info, err := e.groupInfo(ctx, m, ev.GroupJID)
	if err != nil {
		fmt.Printf("⚠️ group %s: metadata unavailable, skipping %s event: %v\n", ev.GroupJID, ev.Action, err)
		return
	}

	switch ev.Action {
	case ActionPromote, ActionDemote:
		e.announceAdminChange(ctx, m, ev, cfg, target)
	case ActionAdd:
		e.handleJoin(ctx, m, ev, cfg, info, target)
	case ActionRemove:
		e.handleLeave(ctx, m, ev, cfg, info, target)
	}
}

func (e *Engine) handleJoin(ctx context.Context, m Messenger, ev MembershipEvent, cfg *groupcfg.GroupConfig, info *types.GroupInfo, target types.JID) {
	if cfg.AntiFake && !e.allowedDDI(target.User) {
		e.remove(ctx, m, ev, target, "antifake", "DDI "+ddiOf(target.User))
		e.sendText(ctx, m, ev, "antifake",
			fmt.Sprintf("🚫 @%s removido: números fake/estrangeiros não são permitidos neste grupo.", target.User),
			mentionList(target))
	}
	if cfg.AntiPT && strings.HasPrefix(target.User, portugalPrefix) {
		e.remove(ctx, m, ev, target, "antipt", "prefixo de Portugal")
		e.sendText(ctx, m, ev, "antipt",
			fmt.Sprintf("🇵🇹 @%s removido: números de Portugal não são permitidos neste grupo.", target.User),
			mentionList(target))
	}
	if entry, banned := blacklisted(cfg, target); banned {
		e.remove(ctx, m, ev, target, "blacklist", entry.Reason)
		reason := entry.Reason
		if reason == "" {
			reason = "sem motivo registrado"
		}
		e.sendText(ctx, m, ev, "blacklist",
			fmt.Sprintf("⛔ @%s está na blacklist deste grupo. Motivo: %s", target.User, reason),
			mentionList(target))
		// Blacklist is terminal: a banned join never gets a welcome.
		return
	}
	if cfg.Welcome {
		e.welcome(ctx, m, ev, cfg, info, target)
	}
}

func (e *Engine) handleLeave(ctx context.Context, m Messenger, ev MembershipEvent, cfg *groupcfg.GroupConfig, info *types.GroupInfo, target types.JID) {
	if !cfg.Exit.Enabled {
		return
	}
	text := strings.TrimSpace(cfg.Exit.Text)
	if len(text) <= 1 {
		text = defaultExitTemplate
	}
	text = Substitute(text, target, info)
	mentions := mentionList(target)

	if cfg.Exit.Image != "" && e.Images != nil {
		data, err := e.Images.Fetch(ctx, cfg.Exit.Image)
		if err == nil {
			e.sendImage(ctx, m, ev, "exit", data, text, mentions)
			return
		}
		fmt.Printf("⚠️ group %s: exit image fetch failed, sending text: %v\n", ev.GroupJID, err)
	}
	e.sendText(ctx, m, ev, "exit", text, mentions)
}

func (e *Engine) announceAdminChange(ctx context.Context, m Messenger, ev MembershipEvent, cfg *groupcfg.GroupConfig, target types.JID) {
	if !cfg.X9 {
		return
	}
	verb := "promovido a admin"
	if ev.Action == ActionDemote {
		verb = "rebaixado de admin"
	}
	author := "alguém"
	mentions := mentionList(target)
	if ev.Author != nil && ev.Author.User != "" {
		author = "@" + ev.Author.User
		mentions = append(mentions, ev.Author.ToNonAD().String())
	}
	e.sendText(ctx, m, ev, "x9",
		fmt.Sprintf("🚨 X9: @%s foi %s por %s.", target.User, verb, author),
		mentions)
}

func (e *Engine) welcome(ctx context.Context, m Messenger, ev MembershipEvent, cfg *groupcfg.GroupConfig, info *types.GroupInfo, target types.JID) {
	text := strings.TrimSpace(cfg.WelcomeText)
	if len(text) <= 1 {
		text = defaultWelcomeTemplate
	}
	text = Substitute(text, target, info)
	mentions := mentionList(target)

	if cfg.WelcomeMedia.Image != "" {
		data, err := e.welcomeImage(ctx, m, cfg.WelcomeMedia.Image, info, target)
		if err == nil {
			e.sendImage(ctx, m, ev, "welcome", data, text, mentions)
			return
		}
		fmt.Printf("⚠️ group %s: welcome image unavailable, sending text: %v\n", ev.GroupJID, err)
	}
	e.sendText(ctx, m, ev, "welcome", text, mentions)
}

// welcomeImage resolves the configured welcome image: a direct URL, or a
// generated banner when the sentinel is set.
func (e *Engine) welcomeImage(ctx context.Context, m Messenger, image string, info *types.GroupInfo, target types.JID) ([]byte, error) {
	if image != groupcfg.BannerSentinel {
		if e.Images == nil {
			return nil, fmt.Errorf("no image fetcher configured")
		}
		return e.Images.Fetch(ctx, image)
	}
	if e.Banner == nil {
		return nil, fmt.Errorf("no banner renderer configured")
	}
	avatar, err := m.ProfilePictureURL(ctx, target)
	if err != nil || avatar == "" {
		avatar = e.StockAvatar
	}
	return e.Banner.Render(ctx, avatar, "Bem-vindo(a)!", info.Name)
}

func (e *Engine) groupInfo(ctx context.Context, m Messenger, group types.JID) (*types.GroupInfo, error) {
	if info, ok := e.Groups.Get(group.String()); ok {
		return info, nil
	}
	info, err := m.GroupInfo(ctx, group)
	if err != nil {
		return nil, err
	}
	e.Groups.Set(group.String(), info)
	return info, nil
}

func (e *Engine) allowedDDI(user string) bool {
	ddi := ddiOf(user)
	for _, allowed := range e.AllowedDDIs {
		if ddi == allowed {
			return true
		}
	}
	return false
}

func ddiOf(user string) string {
	if len(user) < 2 {
		return user
	}
	return user[:2]
}

func blacklisted(cfg *groupcfg.GroupConfig, target types.JID) (groupcfg.BlacklistEntry, bool) {
	if len(cfg.Blacklist) == 0 {
		return groupcfg.BlacklistEntry{}, false
	}
	for _, key := range []string{target.String(), target.ToNonAD().String(), target.User} {
		if entry, ok := cfg.Blacklist[key]; ok {
			return entry, true
		}
	}
	return groupcfg.BlacklistEntry{}, false
}

func mentionList(jids ...types.JID) []string {
	out := make([]string, 0, len(jids))
	for _, j := range jids {
		out = append(out, j.ToNonAD().String())
	}
	return out
}

func (e *Engine) remove(ctx context.Context, m Messenger, ev MembershipEvent, target types.JID, rule, detail string) {
	if err := m.RemoveParticipant(ctx, ev.GroupJID, target); err != nil {
		fmt.Printf("❌ group %s: %s removal of %s failed: %v\n", ev.GroupJID, rule, target.User, err)
		return
	}
	e.record(ctx, ev, target, rule, "remove", detail)
	if e.Alerts != nil {
		if err := e.Alerts.Removal(ctx, ev.GroupJID.String(), target.String(), rule, detail); err != nil {
			fmt.Printf("⚠️ owner alert failed: %v\n", err)
		}
	}
}

func (e *Engine) sendText(ctx context.Context, m Messenger, ev MembershipEvent, rule, text string, mentions []string) {
	if err := m.SendText(ctx, ev.GroupJID, text, mentions); err != nil {
		fmt.Printf("❌ group %s: %s message failed: %v\n", ev.GroupJID, rule, err)
		return
	}
	e.record(ctx, ev, firstOrZero(ev.Participants), rule, "message", excerpt(text))
}

func (e *Engine) sendImage(ctx context.Context, m Messenger, ev MembershipEvent, rule string, image []byte, caption string, mentions []string) {
	if err := m.SendImage(ctx, ev.GroupJID, image, caption, mentions); err != nil {
		fmt.Printf("❌ group %s: %s image failed: %v\n", ev.GroupJID, rule, err)
		return
	}
	e.record(ctx, ev, firstOrZero(ev.Participants), rule, "banner", excerpt(caption))
}

func (e *Engine) record(ctx context.Context, ev MembershipEvent, target types.JID, rule, verb, detail string) {
	if e.ModLog != nil {
		err := e.ModLog.RecordAction(&modlog.ModAction{
			GroupJID:    ev.GroupJID.String(),
			Participant: target.String(),
			Rule:        rule,
			Verb:        verb,
			Detail:      detail,
			SessionRole: ev.SessionRole,
		})
		if err != nil {
			fmt.Printf("⚠️ modlog write failed: %v\n", err)
		}
	}
	if e.Audit != nil {
		err := e.Audit.Publish(ctx, audit.Event{
			GroupJID:    ev.GroupJID.String(),
			Participant: target.String(),
			Rule:        rule,
			Verb:        verb,
			Detail:      detail,
			SessionRole: ev.SessionRole,
		})
		if err != nil {
			fmt.Printf("⚠️ audit publish failed: %v\n", err)
		}
	}
}

func firstOrZero(jids []types.JID) types.JID {
	if len(jids) == 0 {
		return types.JID{}
	}
	return jids[0]
}

func excerpt(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
