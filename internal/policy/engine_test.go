package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types"

	"github.com/zeladorbot/zelador/internal/cache"
	"github.com/zeladorbot/zelador/internal/groupcfg"
)

var (
	testGroup  = types.NewJID("120363028384756453", types.GroupServer)
	selfJID    = types.NewJID("5511900000000", types.DefaultUserServer)
	brazilian  = types.NewJID("5511988887777", types.DefaultUserServer)
	portuguese = types.NewJID("351911222333", types.DefaultUserServer)
	fakeNumber = types.NewJID("1299911122233", types.DefaultUserServer)
)

type sentText struct {
	text     string
	mentions []string
}

type fakeMessenger struct {
	self       types.JID
	calls      []string
	texts      []sentText
	imageSends []sentText
	removed    []types.JID
	info       *types.GroupInfo
	infoErr    error
	infoCalls  int
	pictureURL string
	pictureErr error
	sendErr    error
	removeErr  error
}

func (f *fakeMessenger) SelfJID() types.JID { return f.self }

func (f *fakeMessenger) SendText(ctx context.Context, chat types.JID, text string, mentions []string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.calls = append(f.calls, "text")
	f.texts = append(f.texts, sentText{text: text, mentions: mentions})
	return nil
}

func (f *fakeMessenger) SendImage(ctx context.Context, chat types.JID, image []byte, caption string, mentions []string) error {
	f.calls = append(f.calls, "image")
	f.imageSends = append(f.imageSends, sentText{text: caption, mentions: mentions})
	return nil
}

func (f *fakeMessenger) RemoveParticipant(ctx context.Context, group, participant types.JID) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.calls = append(f.calls, "remove:"+participant.User)
	f.removed = append(f.removed, participant)
	return nil
}

func (f *fakeMessenger) GroupInfo(ctx context.Context, group types.JID) (*types.GroupInfo, error) {
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeMessenger) ProfilePictureURL(ctx context.Context, participant types.JID) (string, error) {
	return f.pictureURL, f.pictureErr
}

type mapConfigs map[string]*groupcfg.GroupConfig

func (m mapConfigs) Load(groupID string) (*groupcfg.GroupConfig, bool) {
	cfg, ok := m[groupID]
	return cfg, ok
}

type fakeRenderer struct {
	avatars []string
	err     error
}

func (r *fakeRenderer) Render(ctx context.Context, avatarURL, title, message string) ([]byte, error) {
	r.avatars = append(r.avatars, avatarURL)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("banner"), nil
}

type fakeFetcher struct {
	urls []string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	f.urls = append(f.urls, imageURL)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("image"), nil
}

func testInfo(members int) *types.GroupInfo {
	info := &types.GroupInfo{}
	info.Name = "GroupName"
	info.Topic = "group description"
	for i := 0; i < members; i++ {
		info.Participants = append(info.Participants, types.GroupParticipant{
			JID: types.NewJID(fmt.Sprintf("55119000000%02d", i), types.DefaultUserServer),
		})
	}
	return info
}

func newTestEngine(configs mapConfigs) *Engine {
	return &Engine{
		Configs:     configs,
		Groups:      cache.NewGroupCache(5*time.Minute, nil),
		AllowedDDIs: []string{"55", "35"},
	}
}

func addEvent(participant types.JID) MembershipEvent {
	return MembershipEvent{
		GroupJID:     testGroup,
		Action:       ActionAdd,
		Participants: []types.JID{participant},
	}
}

func TestSelfFilterSuppressesEverything(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiFake: true, Welcome: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(selfJID))

	if len(m.calls) != 0 {
		t.Fatalf("expected no actions for own membership change, got %v", m.calls)
	}
}

func TestMissingConfigIsNoOp(t *testing.T) {
	e := newTestEngine(mapConfigs{})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.calls) != 0 {
		t.Fatalf("expected no actions without group config, got %v", m.calls)
	}
}

func TestMetadataFetchFailureAbortsEvent(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {Welcome: true}})
	m := &fakeMessenger{self: selfJID, infoErr: errors.New("network down")}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.calls) != 0 {
		t.Fatalf("expected event to be skipped on metadata failure, got %v", m.calls)
	}
}

func TestMetadataIsCachedAcrossEvents(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {Welcome: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))
	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if m.infoCalls != 1 {
		t.Errorf("expected one metadata fetch, got %d", m.infoCalls)
	}
}

func TestAntiFakeRemovesAndNotifiesOnce(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiFake: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(fakeNumber))

	if len(m.removed) != 1 || m.removed[0].User != fakeNumber.User {
		t.Fatalf("expected exactly one removal, got %v", m.removed)
	}
	if len(m.texts) != 1 || !strings.Contains(m.texts[0].text, "fake") {
		t.Fatalf("expected one anti-fake notification, got %v", m.texts)
	}
}

func TestAntiFakeAllowsBrazilAndThreeFivePrefix(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiFake: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))
	// 351 starts with the allowed 35 prefix: anti-fake passes it, only
	// anti-PT catches Portugal specifically.
	e.HandleMembership(context.Background(), m, addEvent(portuguese))

	if len(m.removed) != 0 {
		t.Fatalf("expected no removals for allowed prefixes, got %v", m.removed)
	}
}

func TestAntiFakeDoesNotShortCircuitWelcome(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiFake: true, Welcome: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(fakeNumber))

	// Observed source behaviour: a removal by anti-fake does not stop the
	// welcome rule for the same event.
	if len(m.texts) != 2 {
		t.Fatalf("expected anti-fake notice and welcome, got %d texts", len(m.texts))
	}
	if !strings.Contains(m.texts[1].text, "Bem-vindo") {
		t.Errorf("expected welcome after anti-fake, got %q", m.texts[1].text)
	}
}

func TestAntiPTScenario(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiPT: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(portuguese))

	if len(m.removed) != 1 {
		t.Fatalf("expected removal for 351 prefix, got %v", m.removed)
	}
	if len(m.texts) != 1 || !strings.Contains(m.texts[0].text, "Portugal") {
		t.Fatalf("expected anti-PT notification, got %v", m.texts)
	}
}

func TestBlacklistIsTerminal(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome: true,
		Blacklist: map[string]groupcfg.BlacklistEntry{
			brazilian.String(): {Reason: "spam"},
		},
	}})
	m := &fakeMessenger{self: selfJID, info: testInfo(10)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.removed) != 1 {
		t.Fatalf("expected blacklist removal, got %v", m.removed)
	}
	if len(m.texts) != 1 {
		t.Fatalf("expected only the blacklist notice, got %d texts", len(m.texts))
	}
	if !strings.Contains(m.texts[0].text, "spam") {
		t.Errorf("expected blacklist reason in notice, got %q", m.texts[0].text)
	}
	for _, sent := range m.texts {
		if strings.Contains(sent.text, "Bem-vindo") {
			t.Errorf("welcome must not fire for blacklisted join")
		}
	}
}

func TestRuleOrderForJoin(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {
		AntiFake: true,
		AntiPT:   true,
		Welcome:  true,
		Blacklist: map[string]groupcfg.BlacklistEntry{
			portuguese.String(): {Reason: "banido"},
		},
	}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(portuguese))

	// 351 passes anti-fake (35 allowed), anti-PT removes, blacklist removes
	// again and terminates before welcome.
	want := []string{"remove:" + portuguese.User, "text", "remove:" + portuguese.User, "text"}
	if len(m.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", m.calls, want)
	}
	for i := range want {
		if m.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", m.calls, want)
		}
	}
}

func TestWelcomeCustomTemplateScenario(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome:     true,
		WelcomeText: "Hi #numerodele#, welcome to #nomedogp#!",
	}})
	m := &fakeMessenger{self: selfJID, info: testInfo(10)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.texts) != 1 {
		t.Fatalf("expected one welcome message, got %d", len(m.texts))
	}
	want := "Hi @" + brazilian.User + ", welcome to GroupName!"
	if m.texts[0].text != want {
		t.Errorf("welcome = %q, want %q", m.texts[0].text, want)
	}
	found := false
	for _, mention := range m.texts[0].mentions {
		if mention == brazilian.ToNonAD().String() {
			found = true
		}
	}
	if !found {
		t.Errorf("mentions %v missing participant", m.texts[0].mentions)
	}
}

func TestWelcomeTrivialTemplateFallsBackToDefault(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome:     true,
		WelcomeText: "1",
	}})
	m := &fakeMessenger{self: selfJID, info: testInfo(7)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.texts) != 1 {
		t.Fatalf("expected one welcome, got %d", len(m.texts))
	}
	text := m.texts[0].text
	if !strings.Contains(text, "GroupName") || !strings.Contains(text, "7") {
		t.Errorf("default welcome missing group data: %q", text)
	}
}

func TestWelcomeDirectImageURL(t *testing.T) {
	fetcher := &fakeFetcher{}
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome:      true,
		WelcomeMedia: groupcfg.MediaConfig{Image: "https://cdn.example/banner.png"},
	}})
	e.Images = fetcher
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.imageSends) != 1 {
		t.Fatalf("expected image send, calls=%v", m.calls)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://cdn.example/banner.png" {
		t.Errorf("fetcher urls = %v", fetcher.urls)
	}
}

func TestWelcomeBannerUsesStockAvatarOnPictureFailure(t *testing.T) {
	renderer := &fakeRenderer{}
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome:      true,
		WelcomeMedia: groupcfg.MediaConfig{Image: groupcfg.BannerSentinel},
	}})
	e.Banner = renderer
	e.StockAvatar = "https://cdn.example/stock.png"
	m := &fakeMessenger{self: selfJID, info: testInfo(5), pictureErr: errors.New("no picture")}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.imageSends) != 1 {
		t.Fatalf("expected banner image send, calls=%v", m.calls)
	}
	if len(renderer.avatars) != 1 || renderer.avatars[0] != "https://cdn.example/stock.png" {
		t.Errorf("expected stock avatar fallback, got %v", renderer.avatars)
	}
}

func TestWelcomeImageFailureFallsBackToText(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("fetch failed")}
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Welcome:      true,
		WelcomeMedia: groupcfg.MediaConfig{Image: "https://cdn.example/gone.png"},
	}})
	e.Images = fetcher
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, addEvent(brazilian))

	if len(m.imageSends) != 0 {
		t.Fatalf("expected no image send on fetch failure")
	}
	if len(m.texts) != 1 {
		t.Fatalf("expected text fallback, got %d texts", len(m.texts))
	}
}

func TestExitMessage(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {
		Exit: groupcfg.ExitConfig{Enabled: true, Text: "tchau #numerodele#, ficamos com #membros#"},
	}})
	m := &fakeMessenger{self: selfJID, info: testInfo(9)}

	e.HandleMembership(context.Background(), m, MembershipEvent{
		GroupJID:     testGroup,
		Action:       ActionRemove,
		Participants: []types.JID{brazilian},
	})

	if len(m.texts) != 1 {
		t.Fatalf("expected one exit message, got %d", len(m.texts))
	}
	want := "tchau @" + brazilian.User + ", ficamos com 9"
	if m.texts[0].text != want {
		t.Errorf("exit = %q, want %q", m.texts[0].text, want)
	}
}

func TestExitDisabledIsSilent(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {Welcome: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(9)}

	e.HandleMembership(context.Background(), m, MembershipEvent{
		GroupJID:     testGroup,
		Action:       ActionRemove,
		Participants: []types.JID{brazilian},
	})

	if len(m.calls) != 0 {
		t.Fatalf("expected no action for leave without exit config, got %v", m.calls)
	}
}

func TestX9PromoteMentionsAuthor(t *testing.T) {
	author := types.NewJID("5511977776666", types.DefaultUserServer)
	e := newTestEngine(mapConfigs{testGroup.String(): {X9: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, MembershipEvent{
		GroupJID:     testGroup,
		Action:       ActionPromote,
		Participants: []types.JID{brazilian},
		Author:       &author,
	})

	if len(m.texts) != 1 {
		t.Fatalf("expected exactly one announcement, got %d", len(m.texts))
	}
	text := m.texts[0].text
	if !strings.Contains(text, "@"+brazilian.User) || !strings.Contains(text, "@"+author.User) {
		t.Errorf("announcement missing mentions: %q", text)
	}
	if !strings.Contains(text, "promovido") {
		t.Errorf("expected promote wording, got %q", text)
	}
	if len(m.texts[0].mentions) != 2 {
		t.Errorf("expected participant and author in mention list, got %v", m.texts[0].mentions)
	}
}

func TestX9DemoteWithoutAuthorFallsBack(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {X9: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5)}

	e.HandleMembership(context.Background(), m, MembershipEvent{
		GroupJID:     testGroup,
		Action:       ActionDemote,
		Participants: []types.JID{brazilian},
	})

	if len(m.texts) != 1 {
		t.Fatalf("expected one announcement, got %d", len(m.texts))
	}
	if !strings.Contains(m.texts[0].text, "alguém") {
		t.Errorf("expected author fallback, got %q", m.texts[0].text)
	}
	if !strings.Contains(m.texts[0].text, "rebaixado") {
		t.Errorf("expected demote wording, got %q", m.texts[0].text)
	}
}

func TestRemovalFailureDoesNotStopNotification(t *testing.T) {
	e := newTestEngine(mapConfigs{testGroup.String(): {AntiPT: true}})
	m := &fakeMessenger{self: selfJID, info: testInfo(5), removeErr: errors.New("not admin")}

	e.HandleMembership(context.Background(), m, addEvent(portuguese))

	if len(m.texts) != 1 {
		t.Fatalf("expected notification despite removal failure, got %d texts", len(m.texts))
	}
}

func TestSubstituteReplacesAllOccurrences(t *testing.T) {
	info := testInfo(10)
	out := Substitute("Somos #membros#, sim, #membros# membros em #nomedogp#", brazilian, info)
	if strings.Contains(out, TokenMemberCount) {
		t.Fatalf("unsubstituted token in %q", out)
	}
	if strings.Count(out, "10") != 2 {
		t.Errorf("expected member count twice, got %q", out)
	}
}

func TestSubstituteEmptyDescription(t *testing.T) {
	info := testInfo(3)
	info.Topic = ""
	out := Substitute("desc:[#desc#]", brazilian, info)
	if out != "desc:[]" {
		t.Errorf("expected empty description substitution, got %q", out)
	}
}
