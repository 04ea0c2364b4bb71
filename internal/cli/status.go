package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zeladorbot/zelador/internal/config"
	"github.com/zeladorbot/zelador/internal/modlog"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Zelador Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Zelador Status")
		fmt.Printf("Version: %s\n", version)

		if configPath, err := config.ConfigPath(); err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:   ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:   ✗ Not found (defaults and env only)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:   ✗ Load error: %v\n", err)
			return
		}
		fmt.Printf("Owner:    %s\n", cfg.Bot.Owner)
		fmt.Printf("Prefix:   %q\n", cfg.Bot.Prefix)
		fmt.Printf("Dual:     %v\n", cfg.Bot.DualMode)

		for _, role := range []string{"primary", "secondary"} {
			if role == "secondary" && !cfg.Bot.DualMode {
				continue
			}
			db := filepath.Join(cfg.Paths.AuthDir, role, "session.db")
			if _, err := os.Stat(db); err == nil {
				fmt.Printf("Session:  ✓ %s paired\n", role)
			} else {
				fmt.Printf("Session:  ✗ %s not paired (run 'zelador run' to pair)\n", role)
			}
		}

		if _, err := os.Stat(cfg.Paths.ModLogPath); err == nil {
			if svc, err := modlog.Open(cfg.Paths.ModLogPath); err == nil {
				if v, _ := svc.GetSetting("last_start"); v != "" {
					fmt.Printf("Last run: %s\n", v)
				}
				svc.Close()
			}
		}

		if cfg.Audit.Enabled {
			fmt.Printf("Audit:    ✓ %s (%s)\n", cfg.Audit.Topic, cfg.Audit.Brokers)
		} else {
			fmt.Println("Audit:    ✗ Disabled")
		}
		if cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
			fmt.Println("Alerts:   ✓ Slack configured")
		} else {
			fmt.Println("Alerts:   ✗ Disabled")
		}
	},
}
