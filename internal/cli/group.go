package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeladorbot/zelador/internal/config"
	"github.com/zeladorbot/zelador/internal/groupcfg"
	"github.com/zeladorbot/zelador/internal/modlog"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect and edit per-group moderation config",
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group-jid>",
	Short: "Show the moderation config of a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := mustGroupStore()
		cfg, ok := store.Load(args[0])
		if !ok {
			fmt.Println("No config for this group (all rules off).")
			return
		}
		fmt.Printf("x9:        %v\n", cfg.X9)
		fmt.Printf("antifake:  %v\n", cfg.AntiFake)
		fmt.Printf("antipt:    %v\n", cfg.AntiPT)
		fmt.Printf("bemvindo:  %v\n", cfg.Welcome)
		if cfg.WelcomeText != "" {
			fmt.Printf("textbv:    %s\n", cfg.WelcomeText)
		}
		if cfg.WelcomeMedia.Image != "" {
			fmt.Printf("welcome:   image=%s\n", cfg.WelcomeMedia.Image)
		}
		fmt.Printf("exit:      %v\n", cfg.Exit.Enabled)
		if len(cfg.Blacklist) > 0 {
			fmt.Printf("blacklist: %d entries\n", len(cfg.Blacklist))
			for jid, entry := range cfg.Blacklist {
				fmt.Printf("  %s  %s\n", jid, entry.Reason)
			}
		}
	},
}

var groupSetCmd = &cobra.Command{
	Use:   "set <group-jid> <x9|antifake|antipt|bemvindo|exit> <on|off>",
	Short: "Toggle a moderation rule for a group",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		store := mustGroupStore()
		cfg, _ := store.Load(args[0])
		if cfg == nil {
			cfg = &groupcfg.GroupConfig{}
		}
		on := strings.EqualFold(args[2], "on")
		switch strings.ToLower(args[1]) {
		case "x9":
			cfg.X9 = on
		case "antifake":
			cfg.AntiFake = on
		case "antipt":
			cfg.AntiPT = on
		case "bemvindo":
			cfg.Welcome = on
		case "exit":
			cfg.Exit.Enabled = on
		default:
			fmt.Printf("Unknown rule %q\n", args[1])
			os.Exit(1)
		}
		if err := store.Save(args[0], cfg); err != nil {
			fmt.Printf("Save error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s = %v for %s\n", strings.ToLower(args[1]), on, args[0])
	},
}

var groupWelcomeTextCmd = &cobra.Command{
	Use:   "welcome-text <group-jid> <template>",
	Short: "Set the welcome message template",
	Long: "Set the welcome template. Tokens: #numerodele# (new member), " +
		"#nomedogp# (group name), #desc# (description), #membros# (member count).",
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := mustGroupStore()
		cfg, _ := store.Load(args[0])
		if cfg == nil {
			cfg = &groupcfg.GroupConfig{}
		}
		cfg.WelcomeText = strings.Join(args[1:], " ")
		if err := store.Save(args[0], cfg); err != nil {
			fmt.Printf("Save error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ welcome template updated")
	},
}

var groupBlacklistCmd = &cobra.Command{
	Use:   "blacklist <add|remove> <group-jid> <participant-jid> [reason...]",
	Short: "Edit the group blacklist",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		store := mustGroupStore()
		cfg, _ := store.Load(args[1])
		if cfg == nil {
			cfg = &groupcfg.GroupConfig{}
		}
		switch args[0] {
		case "add":
			if cfg.Blacklist == nil {
				cfg.Blacklist = map[string]groupcfg.BlacklistEntry{}
			}
			cfg.Blacklist[args[2]] = groupcfg.BlacklistEntry{Reason: strings.Join(args[3:], " ")}
			fmt.Printf("⛔ %s blacklisted in %s\n", args[2], args[1])
		case "remove":
			delete(cfg.Blacklist, args[2])
			fmt.Printf("✅ %s removed from blacklist of %s\n", args[2], args[1])
		default:
			fmt.Printf("Unknown blacklist action %q\n", args[0])
			os.Exit(1)
		}
		if err := store.Save(args[1], cfg); err != nil {
			fmt.Printf("Save error: %v\n", err)
			os.Exit(1)
		}
	},
}

var groupLogCmd = &cobra.Command{
	Use:   "log <group-jid> [limit]",
	Short: "Show recent moderation actions in a group",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		svc, err := modlog.Open(cfg.Paths.ModLogPath)
		if err != nil {
			fmt.Printf("Moderation log error: %v\n", err)
			os.Exit(1)
		}
		defer svc.Close()

		limit := 20
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				limit = n
			}
		}
		actions, err := svc.RecentActions(args[0], limit)
		if err != nil {
			fmt.Printf("Query error: %v\n", err)
			os.Exit(1)
		}
		if len(actions) == 0 {
			fmt.Println("No recorded actions.")
			return
		}
		for _, a := range actions {
			fmt.Printf("%s  %-9s %-7s %s  %s\n",
				a.CreatedAt.Format("2006-01-02 15:04:05"), a.Rule, a.Verb, a.Participant, a.Detail)
		}
	},
}

func mustConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustGroupStore() *groupcfg.Store {
	store, err := groupcfg.NewStore(mustConfig().Paths.GroupsDir)
	if err != nil {
		fmt.Printf("Group config error: %v\n", err)
		os.Exit(1)
	}
	return store
}

func init() {
	groupCmd.AddCommand(groupShowCmd)
	groupCmd.AddCommand(groupSetCmd)
	groupCmd.AddCommand(groupWelcomeTextCmd)
	groupCmd.AddCommand(groupBlacklistCmd)
	groupCmd.AddCommand(groupLogCmd)
}
