// Package service orchestrates the AI flows: voice-note summarization,
// screenshot import, and gift-idea generation, including deferred
// replay through the operation queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/match"
	"github.com/Omashka/circles-sub001/internal/merge"
	"github.com/Omashka/circles-sub001/internal/models"
	"github.com/Omashka/circles-sub001/internal/queue"
	"github.com/Omashka/circles-sub001/internal/store"
)

// ErrQueued reports that an operation could not complete now and was
// deferred for retry. The note is not lost; it lives in the queue.
var ErrQueued = errors.New("operation queued for retry")

// Service wires the AI gateway, contact store, matcher, and queue into
// the three user-facing flows. Constructed once at startup and passed
// to whoever needs it; there are no package-level singletons.
type Service struct {
	store   store.ContactStore
	gateway ai.Gateway
	matcher *match.Matcher
	logger  *slog.Logger

	queue *queue.Queue
}

// New creates the service. AttachQueue must be called before any flow
// that can defer work.
func New(contacts store.ContactStore, gateway ai.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   contacts,
		gateway: gateway,
		matcher: match.New(),
		logger:  logger,
	}
}

// AttachQueue connects the operation queue. Separate from New because
// the queue needs the service as its result sink.
func (s *Service) AttachQueue(q *queue.Queue) {
	s.queue = q
}

// VoiceNoteResult is the outcome of a completed voice-note flow.
type VoiceNoteResult struct {
	Summary     models.AISummary
	Interaction models.Interaction
	Degraded    bool
}

// ProcessVoiceNote summarizes a transcription and merges the result
// into the contact. Retry-eligible failures enqueue the operation and
// return ErrQueued. Credential failures save the transcript unprocessed
// and surface the configuration problem.
func (s *Service) ProcessVoiceNote(ctx context.Context, contactID, transcription string) (VoiceNoteResult, error) {
	contact, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return VoiceNoteResult{}, fmt.Errorf("load contact: %w", err)
	}

	payload := models.OperationPayload{
		Text:        transcription,
		ContactID:   contactID,
		ContactName: contact.Name,
	}

	out, err := s.gateway.Dispatch(ctx, models.OpVoiceSummarization, payload)
	if err != nil {
		return VoiceNoteResult{}, s.deferOrSave(ctx, models.OpVoiceSummarization, payload, err)
	}

	interaction, err := s.applySummary(ctx, contact, *out.Summary, transcription, "voice")
	if err != nil {
		return VoiceNoteResult{}, err
	}
	return VoiceNoteResult{Summary: *out.Summary, Interaction: interaction, Degraded: out.Degraded}, nil
}

// ScreenshotResult is the outcome of a completed screenshot flow.
type ScreenshotResult struct {
	Match    models.ContactMatchResult
	Degraded bool
}

// ProcessScreenshot extracts relationship content from screenshot text
// and routes it to the matched contact, or to the unassigned inbox when
// no contact clears the confidence threshold.
func (s *Service) ProcessScreenshot(ctx context.Context, text string) (ScreenshotResult, error) {
	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		return ScreenshotResult{}, fmt.Errorf("list contacts: %w", err)
	}

	payload := models.OperationPayload{
		Text:       text,
		Candidates: store.Candidates(contacts),
	}

	out, err := s.gateway.Dispatch(ctx, models.OpScreenshotImport, payload)
	if err != nil {
		return ScreenshotResult{}, s.deferOrSave(ctx, models.OpScreenshotImport, payload, err)
	}

	result, err := s.routeScreenshot(ctx, *out.Screenshot, text)
	if err != nil {
		return ScreenshotResult{}, err
	}
	return ScreenshotResult{Match: result, Degraded: out.Degraded}, nil
}

// GiftIdeas generates gift suggestions for a contact. The flow shares
// the queue/retry contract of the other two operations.
func (s *Service) GiftIdeas(ctx context.Context, contactID, budget string) ([]string, error) {
	contact, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	payload := models.OperationPayload{
		ContactID:   contactID,
		ContactName: contact.Name,
		Interests:   contact.Interests,
		Budget:      budget,
	}

	out, err := s.gateway.Dispatch(ctx, models.OpGiftIdeas, payload)
	if err != nil {
		return nil, s.deferOrSave(ctx, models.OpGiftIdeas, payload, err)
	}
	return out.Ideas, nil
}

// Drain replays queued operations.
func (s *Service) Drain(ctx context.Context) queue.DrainReport {
	return s.queue.DrainAndRetry(ctx)
}

// PendingOperations returns the queued operations in order.
func (s *Service) PendingOperations() []models.QueuedOperation {
	return s.queue.Pending()
}

// deferOrSave applies the failure policy: retry-eligible errors enqueue
// the payload and report ErrQueued; credential errors save the raw
// input unprocessed and propagate so the caller can surface the
// configuration problem.
func (s *Service) deferOrSave(ctx context.Context, kind models.OperationKind, payload models.OperationPayload, err error) error {
	aiErr := ai.AsError(err)

	if !aiErr.Retryable() {
		if saveErr := s.saveRaw(ctx, kind, payload, string(aiErr.Code)); saveErr != nil {
			s.logger.Error("saving raw input failed", "kind", kind, "error", saveErr)
		}
		return aiErr
	}

	if s.queue == nil {
		return aiErr
	}
	op := s.queue.Enqueue(kind, payload)
	s.logger.Info("operation deferred", "op_id", op.ID, "kind", kind, "code", aiErr.Code)
	return fmt.Errorf("%w: %s", ErrQueued, aiErr.Code)
}

// applySummary merges a summary into the contact and records the
// interaction.
func (s *Service) applySummary(ctx context.Context, contact *models.Contact, summary models.AISummary, rawInput, source string) (models.Interaction, error) {
	interaction := merge.Apply(contact, summary, rawInput, source)

	if err := s.store.SaveContact(ctx, *contact); err != nil {
		return models.Interaction{}, fmt.Errorf("save contact: %w", err)
	}
	if err := s.store.AppendInteraction(ctx, interaction); err != nil {
		return models.Interaction{}, fmt.Errorf("append interaction: %w", err)
	}

	s.logger.Info("summary merged", "contact_id", contact.ID, "source", source)
	return interaction, nil
}

// routeScreenshot applies the match decision: attach to the contact or
// file into the unassigned inbox.
func (s *Service) routeScreenshot(ctx context.Context, shot models.ScreenshotSummary, rawText string) (models.ContactMatchResult, error) {
	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		return models.ContactMatchResult{}, fmt.Errorf("list contacts: %w", err)
	}

	result := s.matcher.Match(shot, store.Candidates(contacts))
	if !result.Matched() {
		note := models.UnassignedNote{
			ID:        uuid.New().String(),
			Text:      rawText,
			Summary:   shot.Summary,
			Source:    "screenshot",
			CreatedAt: time.Now(),
		}
		if err := s.store.SaveUnassigned(ctx, note); err != nil {
			return models.ContactMatchResult{}, fmt.Errorf("save unassigned note: %w", err)
		}
		s.logger.Info("screenshot filed to inbox", "confidence", result.Confidence)
		return result, nil
	}

	contact, err := s.store.GetContact(ctx, result.ContactID)
	if err != nil {
		return models.ContactMatchResult{}, fmt.Errorf("load matched contact: %w", err)
	}
	if _, err := s.applySummary(ctx, contact, result.Summary, rawText, "screenshot"); err != nil {
		return models.ContactMatchResult{}, err
	}
	return result, nil
}

// saveRaw persists raw input unprocessed so user content survives
// permanently failed AI processing.
func (s *Service) saveRaw(ctx context.Context, kind models.OperationKind, payload models.OperationPayload, reason string) error {
	switch kind {
	case models.OpVoiceSummarization:
		if payload.ContactID != "" {
			return s.store.AppendInteraction(ctx, models.Interaction{
				ID:        uuid.New().String(),
				ContactID: payload.ContactID,
				RawInput:  payload.Text,
				Source:    "voice",
				CreatedAt: time.Now(),
			})
		}
		fallthrough
	case models.OpScreenshotImport:
		return s.store.SaveUnassigned(ctx, models.UnassignedNote{
			ID:        uuid.New().String(),
			Text:      payload.Text,
			Source:    sourceForKind(kind),
			CreatedAt: time.Now(),
		})
	case models.OpGiftIdeas:
		// Nothing user-authored to preserve; the contact profile is the
		// input and it is already stored.
		s.logger.Warn("gift idea generation permanently failed",
			"contact_id", payload.ContactID, "reason", reason)
		return nil
	}
	return fmt.Errorf("unknown operation kind: %s", kind)
}

func sourceForKind(kind models.OperationKind) string {
	if kind == models.OpScreenshotImport {
		return "screenshot"
	}
	return "voice"
}

// HandleOutcome applies a successfully replayed operation. Part of the
// queue.ResultSink contract.
func (s *Service) HandleOutcome(ctx context.Context, op models.QueuedOperation, out ai.Outcome) error {
	switch op.Kind {
	case models.OpVoiceSummarization:
		contact, err := s.store.GetContact(ctx, op.Payload.ContactID)
		if err != nil {
			return fmt.Errorf("load contact for replay: %w", err)
		}
		_, err = s.applySummary(ctx, contact, *out.Summary, op.Payload.Text, "voice")
		return err
	case models.OpScreenshotImport:
		_, err := s.routeScreenshot(ctx, *out.Screenshot, op.Payload.Text)
		return err
	case models.OpGiftIdeas:
		// Ideas are transient suggestions; by replay time nobody is
		// waiting for them, so they are logged rather than stored.
		s.logger.Info("replayed gift ideas", "contact_id", op.Payload.ContactID, "ideas", out.Ideas)
		return nil
	}
	return fmt.Errorf("unknown operation kind: %s", op.Kind)
}

// SaveRawInput persists the raw input of a discarded operation. Part of
// the queue.ResultSink contract.
func (s *Service) SaveRawInput(ctx context.Context, op models.QueuedOperation, reason string) error {
	return s.saveRaw(ctx, op.Kind, op.Payload, reason)
}

var _ queue.ResultSink = (*Service)(nil)
