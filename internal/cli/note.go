package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/service"
)

var noteText string

var noteCmd = &cobra.Command{
	Use:   "note <contact-id>",
	Short: "Summarize a voice-note transcription into a contact's profile",
	Long: `Process an already-transcribed voice note: the AI extracts interests,
dates, and details, appends an interaction, and merges the profile fields.

Use 'circles record' to capture and transcribe live audio instead.

Example:
  circles note <id> --text "Met Sarah for coffee, she started a new job"`,
	Args: cobra.ExactArgs(1),
	RunE: runNote,
}

func init() {
	noteCmd.Flags().StringVarP(&noteText, "text", "t", "", "transcription text (required)")
	_ = noteCmd.MarkFlagRequired("text")
}

func runNote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	result, err := svc.ProcessVoiceNote(ctx, args[0], noteText)
	if errors.Is(err, service.ErrQueued) {
		fmt.Println(defaultTheme.hintStyle().Render("Processing unavailable right now; note queued for retry."))
		fmt.Println("Run 'circles queue drain' when back online.")
		return nil
	}
	if err != nil {
		return err
	}

	printSummaryResult(result)
	return nil
}

func printSummaryResult(result service.VoiceNoteResult) {
	if result.Degraded {
		fmt.Println(defaultTheme.hintStyle().Render("Model output was unstructured; saved as plain summary."))
	}
	fmt.Println(defaultTheme.successStyle().Render("✓ Note processed"))
	fmt.Printf("  Summary: %s\n", result.Summary.Summary)
	if len(result.Summary.Interests) > 0 {
		fmt.Printf("  Interests: %s\n", strings.Join(result.Summary.Interests, ", "))
	}
	if len(result.Summary.Events) > 0 {
		fmt.Printf("  Events: %s\n", strings.Join(result.Summary.Events, ", "))
	}
	if len(result.Summary.Dates) > 0 {
		fmt.Printf("  Dates: %s\n", strings.Join(result.Summary.Dates, ", "))
	}
	if result.Summary.WorkInfo != nil {
		fmt.Printf("  Work: %s\n", *result.Summary.WorkInfo)
	}
}
