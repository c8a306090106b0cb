package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/conversa-ai/conversa/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"   ___ ___  _ ____   _____ _ __ ___  __ _\n" +
		"  / __/ _ \\| '_ \\ \\ / / _ \\ '__/ __|/ _` |\n" +
		" | (_| (_) | | | \\ V /  __/ |  \\__ \\ (_| |\n" +
		"  \\___\\___/|_| |_|\\_/ \\___|_|  |___/\\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "conversa",
	Short: "Conversa - Conversational AI Backend",
	Long:  color.CyanString(logo) + "\nAI orchestration backend: context assembly, tool calling, governed prompts.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(auditCmd)
}
