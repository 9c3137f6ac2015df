package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List unassigned notes awaiting manual resolution",
	RunE:  runInbox,
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	notes, err := contacts.Unassigned(ctx)
	if err != nil {
		return fmt.Errorf("list inbox: %w", err)
	}

	if len(notes) == 0 {
		fmt.Println("Inbox is empty.")
		return nil
	}

	fmt.Printf("Unassigned notes (%d):\n\n", len(notes))
	for _, n := range notes {
		text := n.Summary
		if text == "" {
			text = n.Text
		}
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		fmt.Printf("- [%s] %s\n", n.Source, text)
		if verbose {
			fmt.Printf("  ID: %s  Received: %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}
