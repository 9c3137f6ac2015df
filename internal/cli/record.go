package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/capture"
	"github.com/Omashka/circles-sub001/internal/capture/deepgramws"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/service"
)

var (
	recordAudioPath  string
	recordSampleRate int
)

var recordCmd = &cobra.Command{
	Use:   "record <contact-id>",
	Short: "Capture and transcribe audio, then summarize it into a contact",
	Long: `Stream audio through the live recognizer, showing the transcript as it
forms, then summarize the final text into the contact's profile.

Audio is read as raw 16-bit little-endian mono PCM. Recording stops at
the end of the audio, on Ctrl+C, or after 180 seconds, whichever comes
first.

Example:
  circles record <id> --audio note.raw`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordAudioPath, "audio", "a", "", "raw PCM audio file (required)")
	recordCmd.Flags().IntVar(&recordSampleRate, "rate", deepgramws.DefaultSampleRate, "sample rate in Hz")
	_ = recordCmd.MarkFlagRequired("audio")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	contactID := args[0]

	recognizer := deepgramws.NewProvider(deepgramws.Config{
		URL:        cfg.RecognizerURL,
		APIKey:     cfg.RecognizerKey,
		SampleRate: recordSampleRate,
	})

	recorder := capture.NewRecorder(capture.Deps{
		Permissions: capture.GrantedProber{},
		Audio:       capture.NewPCMFileSource(recordAudioPath, recordSampleRate),
		Recognizer:  recognizer,
	}, capture.Config{})

	session, err := recorder.Start(ctx)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Println(defaultTheme.hintStyle().Render("Recording... Ctrl+C to stop"))

	var transcript string
	for {
		select {
		case <-sigCh:
			session.Stop()
		case ev, ok := <-session.Events():
			if !ok {
				collector.RecordTiming(metrics.OpCapture, time.Since(session.StartedAt()))
				return processTranscript(ctx, contactID, transcript)
			}
			switch ev.Kind {
			case capture.EventTranscriptUpdated:
				transcript = ev.Transcript
				fmt.Printf("\r\033[K%s", ev.Transcript)
			case capture.EventDurationReached:
				fmt.Println()
				fmt.Println(defaultTheme.hintStyle().Render("Time limit reached, finalizing..."))
			case capture.EventStopped:
				transcript = ev.Transcript
				fmt.Println()
			case capture.EventFailed:
				fmt.Println()
				return fmt.Errorf("recording failed: %w", ev.Err)
			}
		}
	}
}

func processTranscript(ctx context.Context, contactID, transcript string) error {
	if transcript == "" {
		fmt.Println("Nothing transcribed; nothing to save.")
		return nil
	}

	result, err := svc.ProcessVoiceNote(ctx, contactID, transcript)
	if errors.Is(err, service.ErrQueued) {
		fmt.Println(defaultTheme.hintStyle().Render("Processing unavailable right now; note queued for retry."))
		return nil
	}
	if err != nil {
		return err
	}

	printSummaryResult(result)
	return nil
}
