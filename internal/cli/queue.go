package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or drain the retry queue",
	Long: `Operations that failed for transient reasons wait in a durable queue.

Subcommands:
  list   Show pending operations (default)
  drain  Replay pending operations in order`,
	RunE: runQueueList,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show pending operations",
	RunE:  runQueueList,
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay pending operations in order",
	RunE:  runQueueDrain,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDrainCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ops := svc.PendingOperations()
	if len(ops) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}

	fmt.Printf("Pending operations (%d):\n\n", len(ops))
	for _, op := range ops {
		age := time.Since(op.CreatedAt).Round(time.Second)
		fmt.Printf("- [%s] %s (queued %s ago, %d retries)\n", op.Kind, op.ID, age, op.RetryCount)
		if verbose && op.Payload.Text != "" {
			text := op.Payload.Text
			if len(text) > 80 {
				text = text[:80] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
	}
	return nil
}

func runQueueDrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	report := svc.Drain(ctx)

	if report.Succeeded > 0 {
		fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ %d operation(s) completed", report.Succeeded)))
	}
	if report.Discarded > 0 {
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("✗ %d operation(s) permanently failed", report.Discarded)))
		fmt.Println("  Their raw input was saved unprocessed.")
	}
	if report.Blocked {
		fmt.Println(defaultTheme.hintStyle().Render("Head of queue still failing; later items wait to preserve order."))
	}
	fmt.Printf("Remaining: %d\n", report.Remaining)
	return nil
}
