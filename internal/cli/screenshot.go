package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/service"
)

var (
	screenshotText string
	screenshotFile string
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Import conversation text from a screenshot",
	Long: `Process text extracted from a screenshot of a conversation. The AI
identifies which contact it is about; confident matches merge into that
contact's profile, everything else lands in the unassigned inbox.

Examples:
  circles screenshot --text "Sarah: just landed in Lisbon!"
  circles screenshot --file extracted.txt
  pbpaste | circles screenshot --file -`,
	RunE: runScreenshot,
}

func init() {
	screenshotCmd.Flags().StringVarP(&screenshotText, "text", "t", "", "extracted screenshot text")
	screenshotCmd.Flags().StringVarP(&screenshotFile, "file", "f", "", "read text from file, '-' for stdin")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	text := screenshotText
	if text == "" && screenshotFile != "" {
		var data []byte
		var err error
		if screenshotFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(screenshotFile)
		}
		if err != nil {
			return fmt.Errorf("read screenshot text: %w", err)
		}
		text = string(data)
	}
	if text == "" {
		return fmt.Errorf("provide --text or --file")
	}

	result, err := svc.ProcessScreenshot(ctx, text)
	if errors.Is(err, service.ErrQueued) {
		fmt.Println(defaultTheme.hintStyle().Render("Processing unavailable right now; screenshot queued for retry."))
		return nil
	}
	if err != nil {
		return err
	}

	if result.Degraded {
		fmt.Println(defaultTheme.hintStyle().Render("Model output was unstructured; saved as plain text."))
	}
	if result.Match.Matched() {
		fmt.Println(defaultTheme.successStyle().Render("✓ Matched to contact"))
		fmt.Printf("  Contact: %s (confidence %.2f)\n", result.Match.ContactID, result.Match.Confidence)
		fmt.Printf("  Summary: %s\n", result.Match.Summary.Summary)
	} else {
		fmt.Println(defaultTheme.statusStyle().Render("→ Filed to unassigned inbox"))
		fmt.Printf("  Confidence: %.2f\n", result.Match.Confidence)
		fmt.Println("  Use 'circles inbox' to review.")
	}
	return nil
}
