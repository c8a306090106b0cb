package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conversa-ai/conversa/internal/orchestrator"
)

var (
	chatMessage string
	chatUserID  string
	chatID      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one message through the orchestration engine",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send")
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "cli", "User ID")
	chatCmd.Flags().StringVarP(&chatID, "chat", "c", "", "Chat ID (a new chat is created when empty)")
}

func runChat(cmd *cobra.Command, args []string) {
	if chatMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("💬 Conversa Chat")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx := context.Background()
	actor := orchestrator.Actor{ID: chatUserID, Type: "user"}

	if chatID == "" {
		chatID, err = eng.chats.CreateChat(ctx, actor, chatUserID, "")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chat: %s\n", chatID)
	}

	fmt.Println("Thinking...")
	result, err := eng.orch.Run(ctx, orchestrator.RunInput{
		Actor:       actor,
		UserID:      chatUserID,
		ChatID:      chatID,
		UserMessage: chatMessage,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + result.Content)
	for _, tc := range result.ToolCalls {
		line := fmt.Sprintf("  🔧 %s (%s)", tc.ToolName, tc.Status)
		if tc.Status == "success" {
			fmt.Println(color.GreenString(line))
		} else {
			fmt.Println(color.RedString(line + ": " + tc.Error))
		}
	}
	fmt.Printf("\n%s\n", color.HiBlackString(
		"model=%s iterations=%d tokens=%d stopped=%s",
		result.Model, result.Iterations, result.Usage.TotalTokens, result.StoppedReason))
}
