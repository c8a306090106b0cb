package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conversa-ai/conversa/internal/orchestrator"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage governed system prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt revisions",
	Run: func(cmd *cobra.Command, args []string) {
		withPrompts(func(ctx context.Context, eng *engine) error {
			revisions, err := eng.prompts.List(ctx)
			if err != nil {
				return err
			}
			if len(revisions) == 0 {
				fmt.Println("No prompt revisions.")
				return nil
			}
			for _, p := range revisions {
				marker := " "
				if p.Active {
					marker = color.GreenString("*")
				}
				fmt.Printf("%s v%d  %-8s  %s  %s\n", marker, p.Version, p.Status, p.ID, truncate(p.Content, 60))
			}
			return nil
		})
	},
}

var promptsDraftCmd = &cobra.Command{
	Use:   "draft [content]",
	Short: "Create a draft prompt revision",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withPrompts(func(ctx context.Context, eng *engine) error {
			p, err := eng.prompts.CreateDraft(ctx, governanceActor(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Draft v%d created: %s\n", p.Version, p.ID)
			return nil
		})
	},
}

var promptsSubmitCmd = &cobra.Command{
	Use:   "submit [id]",
	Short: "Submit a draft for review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withPrompts(func(ctx context.Context, eng *engine) error {
			if err := eng.prompts.Submit(ctx, governanceActor(), args[0]); err != nil {
				return err
			}
			fmt.Println("Submitted for review.")
			return nil
		})
	},
}

var promptsApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a pending revision and make it active",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withPrompts(func(ctx context.Context, eng *engine) error {
			if err := eng.prompts.Approve(ctx, governanceActor(), args[0]); err != nil {
				return err
			}
			fmt.Println(color.GreenString("Approved and activated."))
			return nil
		})
	},
}

var promptsDenyCmd = &cobra.Command{
	Use:   "deny [id]",
	Short: "Deny a pending revision",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withPrompts(func(ctx context.Context, eng *engine) error {
			if err := eng.prompts.Deny(ctx, governanceActor(), args[0]); err != nil {
				return err
			}
			fmt.Println("Denied.")
			return nil
		})
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsDraftCmd)
	promptsCmd.AddCommand(promptsSubmitCmd)
	promptsCmd.AddCommand(promptsApproveCmd)
	promptsCmd.AddCommand(promptsDenyCmd)
}

func governanceActor() orchestrator.Actor {
	return orchestrator.Actor{ID: "cli-admin", Type: "system"}
}

func withPrompts(fn func(context.Context, *engine) error) {
	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := fn(context.Background(), eng); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
