package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/zeladorbot/zelador/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"          _           _\n" +
		"  _______| | __ _  __| | ___  _ __\n" +
		" |_  / _ \\ |/ _` |/ _` |/ _ \\| '__|\n" +
		"  / /  __/ | (_| | (_| | (_) | |\n" +
		" /___\\___|_|\\__,_|\\__,_|\\___/|_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "zelador",
	Short: "Zelador - WhatsApp group moderation bot",
	Long:  color.CyanString(logo) + "\nA WhatsApp group janitor: welcomes, blacklists and anti-fake rules.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(groupCmd)
}
