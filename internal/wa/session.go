// Package wa owns the WhatsApp session lifecycle: credential storage,
// QR/pairing-code bootstrap, reconnection with backoff, and the outbound
// messaging surface used by the moderation engine.
package wa

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Role identifies which of the two possible sessions this is.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

const (
	reconnectMinBackoff = 1 * time.Second
	reconnectMaxBackoff = 60 * time.Second
)

var phonePattern = regexp.MustCompile(`^\d{10,15}$`)

// normalizePhone strips everything but digits and validates the result as an
// international number without the plus sign.
func normalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if !phonePattern.MatchString(digits) {
		return "", fmt.Errorf("invalid phone number %q: expected 10 to 15 digits with country code", raw)
	}
	return digits, nil
}

// SessionConfig configures one session.
type SessionConfig struct {
	Role    Role
	AuthDir string
	// PairCode switches bootstrap from QR image to a typed pairing code.
	PairCode    bool
	Phone       string
	SendTimeout time.Duration
}

// Session is one authenticated WhatsApp connection. It reconnects itself on
// transient closes and purges credentials on terminal ones.
type Session struct {
	cfg       SessionConfig
	client    *whatsmeow.Client
	container *sqlstore.Container

	// Handler receives every event not consumed by the lifecycle logic.
	// Must be set before Start.
	Handler func(evt interface{})

	mu          sync.Mutex
	open        bool
	openOnce    sync.Once
	openCh      chan struct{}
	backoff     time.Duration
	rebootstrap bool

	reconnectCh chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
}

// NewSession creates a session. Start must be called before use.
func NewSession(cfg SessionConfig) *Session {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Session{
		cfg:         cfg,
		openCh:      make(chan struct{}),
		backoff:     reconnectMinBackoff,
		reconnectCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Role returns the session's role.
func (s *Session) Role() Role { return s.cfg.Role }

// Start opens the credential store, bootstraps authentication if no device
// is registered yet, and connects. It returns once the connection attempt
// is underway; use WaitConnected for the readiness barrier.
func (s *Session) Start(ctx context.Context) error {
	go s.reconnectLoop()
	return s.openAndConnect(ctx)
}

// openAndConnect opens the credential store and connects, bootstrapping a
// fresh pairing when no device is registered. It runs once at startup and
// again from the reconnect loop after a credential purge.
func (s *Session) openAndConnect(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.AuthDir, 0755); err != nil {
		return fmt.Errorf("session %s: create auth dir: %w", s.cfg.Role, err)
	}

	dbLog := waLog.Stdout(fmt.Sprintf("DB-%s", s.cfg.Role), "WARN", true)
	clientLog := waLog.Stdout(fmt.Sprintf("WA-%s", s.cfg.Role), "INFO", true)

	dbPath := filepath.Join(s.cfg.AuthDir, "session.db")
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	container, err := sqlstore.New(ctx, "sqlite", dsn, dbLog)
	if err != nil {
		return fmt.Errorf("session %s: init credential store: %w", s.cfg.Role, err)
	}
	s.container = container

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("session %s: load device: %w", s.cfg.Role, err)
	}

	s.client = whatsmeow.NewClient(device, clientLog)
	// The session owns its reconnect loop so close reasons get classified.
	s.client.EnableAutoReconnect = false
	s.client.AddEventHandler(s.handleEvent)

	if s.client.Store.ID == nil {
		return s.bootstrap(ctx)
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("session %s: connect: %w", s.cfg.Role, err)
	}
	return nil
}

// bootstrap registers a fresh device, either via pairing code or QR image.
func (s *Session) bootstrap(ctx context.Context) error {
	if s.cfg.PairCode {
		phone, err := normalizePhone(s.cfg.Phone)
		if err != nil {
			return fmt.Errorf("session %s: %w", s.cfg.Role, err)
		}
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("session %s: connect for pairing: %w", s.cfg.Role, err)
		}
		code, err := s.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
		if err != nil {
			return fmt.Errorf("session %s: request pairing code: %w", s.cfg.Role, err)
		}
		fmt.Printf("🔑 session %s: enter this pairing code on the phone: %s\n", s.cfg.Role, code)
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("session %s: qr channel: %w", s.cfg.Role, err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("session %s: connect for pairing: %w", s.cfg.Role, err)
	}
	go func() {
		qrPath := filepath.Join(s.cfg.AuthDir, "qr.png")
		for evt := range qrChan {
			if evt.Event == "code" {
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err != nil {
					fmt.Printf("❌ session %s: write qr image: %v\n", s.cfg.Role, err)
					continue
				}
				fmt.Printf("🖼️ session %s: scan the QR code saved at %s\n", s.cfg.Role, qrPath)
			} else {
				fmt.Printf("📡 session %s: pairing event: %s\n", s.cfg.Role, evt.Event)
			}
		}
	}()
	return nil
}

// Stop disconnects and closes the credential store.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.container != nil {
		s.container.Close()
	}
}

// Connected reports whether the socket is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// WaitConnected blocks until the session has been open at least once.
func (s *Session) WaitConnected(ctx context.Context) error {
	select {
	case <-s.openCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session %s: waiting for connection: %w", s.cfg.Role, ctx.Err())
	}
}

func (s *Session) handleEvent(evt interface{}) {
	if isCloseEvent(evt) {
		s.handleClose(evt)
		return
	}
	if isConnectedEvent(evt) {
		s.markOpen()
	}
	if s.Handler != nil {
		s.Handler(evt)
	}
}

func (s *Session) handleClose(evt interface{}) {
	reason, purge := classifyClose(evt)

	s.mu.Lock()
	s.open = false
	s.mu.Unlock()

	fmt.Printf("🔌 session %s: connection closed (%s)\n", s.cfg.Role, reason)

	if purge {
		fmt.Printf("🗑️ session %s: credentials invalid, purging store for a fresh pairing\n", s.cfg.Role)
		s.purgeCredentials()
		s.mu.Lock()
		s.rebootstrap = true
		s.mu.Unlock()
		s.requestReconnect()
		return
	}
	if reason == ReasonRestartRequired {
		fmt.Printf("⛔ session %s: client outdated, not reconnecting. Update and restart.\n", s.cfg.Role)
		return
	}
	s.requestReconnect()
}

func (s *Session) markOpen() {
	s.mu.Lock()
	s.open = true
	s.backoff = reconnectMinBackoff
	s.mu.Unlock()
	s.openOnce.Do(func() { close(s.openCh) })
	fmt.Printf("✅ session %s: connected as %s\n", s.cfg.Role, s.SelfJID())
}

func (s *Session) requestReconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

// reconnectLoop reconnects with capped exponential backoff. The backoff
// resets when a connection opens. After a credential purge the loop runs
// the full bootstrap again instead of a plain reconnect.
func (s *Session) reconnectLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.reconnectCh:
		}

		s.mu.Lock()
		delay := s.backoff
		s.backoff *= 2
		if s.backoff > reconnectMaxBackoff {
			s.backoff = reconnectMaxBackoff
		}
		reboot := s.rebootstrap
		s.rebootstrap = false
		s.mu.Unlock()

		fmt.Printf("🔁 session %s: reconnecting in %s\n", s.cfg.Role, delay)
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		var err error
		if reboot {
			fmt.Printf("🔑 session %s: starting fresh pairing\n", s.cfg.Role)
			err = s.openAndConnect(context.Background())
		} else {
			err = s.client.Connect()
		}
		if err != nil {
			fmt.Printf("❌ session %s: reconnect failed: %v\n", s.cfg.Role, err)
			if reboot {
				s.mu.Lock()
				s.rebootstrap = true
				s.mu.Unlock()
			}
			s.requestReconnect()
		}
	}
}

// purgeCredentials wipes the on-disk credential store so the next start
// bootstraps a fresh device.
func (s *Session) purgeCredentials() {
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.container != nil {
		s.container.Close()
		s.container = nil
	}
	if err := os.RemoveAll(s.cfg.AuthDir); err != nil {
		fmt.Printf("❌ session %s: purge credentials: %v\n", s.cfg.Role, err)
	}
}

func (s *Session) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.SendTimeout)
}

// SelfJID returns the session's own JID, or the empty JID before pairing.
func (s *Session) SelfJID() types.JID {
	if s.client == nil || s.client.Store.ID == nil {
		return types.EmptyJID
	}
	return *s.client.Store.ID
}

// SendText sends a text message, as an extended text message when mentions
// are attached.
func (s *Session) SendText(ctx context.Context, chat types.JID, text string, mentions []string) error {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()

	var msg *waE2E.Message
	if len(mentions) > 0 {
		msg = &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text:        proto.String(text),
				ContextInfo: &waE2E.ContextInfo{MentionedJID: mentions},
			},
		}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(text)}
	}
	_, err := s.client.SendMessage(ctx, chat, msg)
	return err
}

// SendImage uploads image bytes and sends them with a caption.
func (s *Session) SendImage(ctx context.Context, chat types.JID, image []byte, caption string, mentions []string) error {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()

	uploaded, err := s.client.Upload(ctx, image, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String(http.DetectContentType(image)),
			Caption:       proto.String(caption),
			ContextInfo:   &waE2E.ContextInfo{MentionedJID: mentions},
		},
	}
	_, err = s.client.SendMessage(ctx, chat, msg)
	return err
}

// RemoveParticipant removes one participant from a group.
func (s *Session) RemoveParticipant(ctx context.Context, group, participant types.JID) error {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()
	_, err := s.client.UpdateGroupParticipants(ctx, group, []types.JID{participant}, whatsmeow.ParticipantChangeRemove)
	return err
}

// GroupInfo fetches group metadata from the network.
func (s *Session) GroupInfo(ctx context.Context, group types.JID) (*types.GroupInfo, error) {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()
	return s.client.GetGroupInfo(ctx, group)
}

// ProfilePictureURL returns the participant's profile picture URL, or an
// empty string when none is set.
func (s *Session) ProfilePictureURL(ctx context.Context, participant types.JID) (string, error) {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()
	info, err := s.client.GetProfilePictureInfo(ctx, participant, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", nil
	}
	return info.URL, nil
}
