package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/zeladorbot/zelador/internal/audit"
	"github.com/zeladorbot/zelador/internal/banner"
	"github.com/zeladorbot/zelador/internal/cache"
	"github.com/zeladorbot/zelador/internal/config"
	"github.com/zeladorbot/zelador/internal/groupcfg"
	"github.com/zeladorbot/zelador/internal/intake"
	"github.com/zeladorbot/zelador/internal/modlog"
	"github.com/zeladorbot/zelador/internal/notify"
	"github.com/zeladorbot/zelador/internal/policy"
	"github.com/zeladorbot/zelador/internal/wa"
)

var (
	runPairCode       bool
	runDualMode       bool
	runPhone          string
	runSecondaryPhone string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (connects the WhatsApp sessions)",
	Run:   runBot,
}

func init() {
	runCmd.Flags().BoolVar(&runPairCode, "pair-code", false, "pair with a typed code instead of a QR image")
	runCmd.Flags().BoolVar(&runDualMode, "dual", false, "run a secondary session alongside the primary")
	runCmd.Flags().StringVar(&runPhone, "phone", "", "phone number for pairing-code bootstrap")
	runCmd.Flags().StringVar(&runSecondaryPhone, "secondary-phone", "", "phone number for the secondary session")
}

func runBot(cmd *cobra.Command, args []string) {
	printHeader("🧹 Zelador")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	applyRunFlags(cmd, cfg)

	groups, err := groupcfg.NewStore(cfg.Paths.GroupsDir)
	if err != nil {
		fmt.Printf("Group config error: %v\n", err)
		os.Exit(1)
	}

	modLog, err := modlog.Open(cfg.Paths.ModLogPath)
	if err != nil {
		fmt.Printf("Moderation log error: %v\n", err)
		os.Exit(1)
	}
	defer modLog.Close()
	if err := modLog.SetSetting("last_start", time.Now().UTC().Format(time.RFC3339)); err != nil {
		fmt.Printf("⚠️ settings write failed: %v\n", err)
	}

	images := banner.NewHTTPClient(cfg.Banner.APIBase, 15*time.Second)
	metadata := cache.NewGroupCache(cfg.Cache.GroupTTL, nil)
	engine := policy.NewEngine(groups, metadata, images, cfg.Banner.StockAvatar)
	engine.ModLog = modLog
	engine.Alerts = notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)

	if cfg.Audit.Enabled && cfg.Audit.Brokers != "" {
		publisher := audit.NewPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
		defer publisher.Close()
		engine.Audit = publisher
		fmt.Printf("📨 audit stream enabled: %s (%s)\n", cfg.Audit.Topic, cfg.Audit.Brokers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dedup := cache.NewDedupCache()
	go dedup.StartJanitor(ctx, cfg.Cache.DedupInterval)

	manager := wa.NewManager(cfg, engine, intake.NewHandler(dedup, metadata, commandLogger{prefix: cfg.Bot.Prefix}))
	if err := manager.Start(ctx); err != nil {
		fmt.Printf("Session error: %v\n", err)
		os.Exit(1)
	}
	defer manager.Stop()

	<-ctx.Done()
	fmt.Println("\n👋 shutting down")
}

// applyRunFlags lets command-line flags override the loaded config. Only
// flags the operator actually set are applied.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("pair-code") {
		cfg.Bot.PairCode = runPairCode
	}
	if cmd.Flags().Changed("dual") {
		cfg.Bot.DualMode = runDualMode
	}
	if runPhone != "" {
		cfg.Bot.Phone = runPhone
	}
	if runSecondaryPhone != "" {
		cfg.Bot.SecondaryPhone = runSecondaryPhone
	}
}

// commandLogger is the default router: it only surfaces inbound commands on
// the console. A real command router plugs in through intake.Router and
// replies through the session it receives.
type commandLogger struct {
	prefix string
}

func (c commandLogger) Handle(ctx context.Context, active policy.Messenger, msg *events.Message, groups *cache.GroupCache, dedup *cache.DedupCache) error {
	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	if c.prefix == "" || !strings.HasPrefix(text, c.prefix) {
		return nil
	}
	fmt.Printf("📩 command from %s in %s (reply via %s): %s\n",
		msg.Info.Sender.User, msg.Info.Chat, active.SelfJID().User, text)
	return nil
}
