package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/service"
)

var giftsBudget string

var giftsCmd = &cobra.Command{
	Use:   "gifts <contact-id>",
	Short: "Generate gift ideas for a contact",
	Long: `Generate gift suggestions from a contact's recorded interests.

Example:
  circles gifts <id> --budget "under 50 EUR"`,
	Args: cobra.ExactArgs(1),
	RunE: runGifts,
}

func init() {
	giftsCmd.Flags().StringVarP(&giftsBudget, "budget", "b", "", "budget hint for suggestions")
}

func runGifts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ideas, err := svc.GiftIdeas(ctx, args[0], giftsBudget)
	if errors.Is(err, service.ErrQueued) {
		fmt.Println(defaultTheme.hintStyle().Render("Processing unavailable right now; request queued for retry."))
		return nil
	}
	if err != nil {
		return err
	}

	if len(ideas) == 0 {
		fmt.Println("No ideas this time. Try recording more notes about their interests.")
		return nil
	}

	fmt.Printf("Gift ideas (%d):\n\n", len(ideas))
	for _, idea := range ideas {
		fmt.Printf("- %s\n", idea)
	}
	return nil
}
