package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/models"
	"github.com/Omashka/circles-sub001/internal/queue"
	"github.com/Omashka/circles-sub001/internal/store"
)

func strPtr(s string) *string { return &s }

// stubGateway returns canned outcomes, optionally failing the first n
// dispatches.
type stubGateway struct {
	mu       sync.Mutex
	outcome  ai.Outcome
	err      error
	failures int
	calls    int
}

func (g *stubGateway) Dispatch(_ context.Context, _ models.OperationKind, _ models.OperationPayload) (ai.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failures > 0 {
		g.failures--
		return ai.Outcome{}, g.err
	}
	return g.outcome, nil
}

func newTestService(t *testing.T, gw ai.Gateway) (*Service, *store.MemoryStore) {
	t.Helper()
	contacts := store.NewMemoryStore()
	svc := New(contacts, gw, nil)
	q, err := queue.New(nil, gw, svc, nil, nil)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	svc.AttachQueue(q)
	return svc, contacts
}

func seedSarah(t *testing.T, contacts *store.MemoryStore) models.Contact {
	t.Helper()
	sarah := models.Contact{ID: "sarah-1", Name: "Sarah"}
	if err := contacts.SaveContact(context.Background(), sarah); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	return sarah
}

func TestVoiceNoteEndToEnd(t *testing.T) {
	summary := models.AISummary{
		Summary:         "Coffee catch-up with Sarah about her new job",
		Interests:       []string{},
		Events:          []string{},
		Dates:           []string{},
		WorkInfo:        strPtr("Design firm"),
		TopicsToAvoid:   []string{},
		ReligiousEvents: []string{},
	}
	gw := &stubGateway{outcome: ai.Outcome{Summary: &summary}}
	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)

	ctx := context.Background()
	transcription := "Met Sarah for coffee, she started a new job at a design firm"

	result, err := svc.ProcessVoiceNote(ctx, "sarah-1", transcription)
	if err != nil {
		t.Fatalf("ProcessVoiceNote: %v", err)
	}
	if result.Summary.Summary != summary.Summary {
		t.Errorf("summary = %q", result.Summary.Summary)
	}

	// Exactly one interaction appended to Sarah's record.
	interactions, err := contacts.Interactions(ctx, "sarah-1")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(interactions))
	}
	if interactions[0].RawInput != transcription {
		t.Errorf("raw input = %q", interactions[0].RawInput)
	}
	if interactions[0].Summary != summary.Summary {
		t.Errorf("interaction summary = %q", interactions[0].Summary)
	}

	// workInfo merged into the profile.
	sarah, err := contacts.GetContact(ctx, "sarah-1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if sarah.WorkInfo != "Design firm" {
		t.Errorf("WorkInfo = %q, want merged value", sarah.WorkInfo)
	}
}

func TestVoiceNoteRetryableFailureQueues(t *testing.T) {
	gw := &stubGateway{
		err:      &ai.Error{Code: ai.CodeNetworkFailure, Msg: "offline"},
		failures: 1,
	}
	summary := models.EmptySummary("recovered")
	gw.outcome = ai.Outcome{Summary: &summary}

	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)
	ctx := context.Background()

	_, err := svc.ProcessVoiceNote(ctx, "sarah-1", "note while offline")
	if !errors.Is(err, ErrQueued) {
		t.Fatalf("err = %v, want ErrQueued", err)
	}

	pending := svc.PendingOperations()
	if len(pending) != 1 || pending[0].Kind != models.OpVoiceSummarization {
		t.Fatalf("pending = %+v", pending)
	}

	// Replay succeeds and applies the result.
	report := svc.Drain(ctx)
	if report.Succeeded != 1 {
		t.Fatalf("drain report = %+v", report)
	}
	interactions, _ := contacts.Interactions(ctx, "sarah-1")
	if len(interactions) != 1 {
		t.Fatalf("interactions after replay = %d, want 1", len(interactions))
	}
	if interactions[0].RawInput != "note while offline" {
		t.Errorf("raw input = %q", interactions[0].RawInput)
	}
}

func TestVoiceNoteCredentialFailureSavesRaw(t *testing.T) {
	gw := &stubGateway{
		err:      &ai.Error{Code: ai.CodeAPIKeyMissing, Msg: "no key"},
		failures: 1,
	}
	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)
	ctx := context.Background()

	_, err := svc.ProcessVoiceNote(ctx, "sarah-1", "important note")
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Code != ai.CodeAPIKeyMissing {
		t.Fatalf("err = %v, want ApiKeyMissing surfaced", err)
	}

	// Not queued: reconfiguration, not time, is needed.
	if pending := svc.PendingOperations(); len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	// The raw transcript survives as an unprocessed interaction.
	interactions, _ := contacts.Interactions(ctx, "sarah-1")
	if len(interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(interactions))
	}
	if interactions[0].Summary != "" || interactions[0].RawInput != "important note" {
		t.Errorf("saved interaction = %+v", interactions[0])
	}
}

func TestScreenshotMatchedMerges(t *testing.T) {
	shot := models.ScreenshotSummary{
		AISummary: models.AISummary{
			Summary:   "Sarah is planning a trip to Lisbon",
			Interests: []string{"travel"},
		},
		DetectedContactName: strPtr("Sarah"),
		Confidence:          0.85,
	}
	gw := &stubGateway{outcome: ai.Outcome{Screenshot: &shot}}
	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)
	ctx := context.Background()

	result, err := svc.ProcessScreenshot(ctx, "Sarah: booking flights to Lisbon!")
	if err != nil {
		t.Fatalf("ProcessScreenshot: %v", err)
	}
	if !result.Match.Matched() || result.Match.ContactID != "sarah-1" {
		t.Fatalf("match = %+v", result.Match)
	}

	sarah, _ := contacts.GetContact(ctx, "sarah-1")
	if len(sarah.Interests) != 1 || sarah.Interests[0] != "travel" {
		t.Errorf("interests = %v", sarah.Interests)
	}
	interactions, _ := contacts.Interactions(ctx, "sarah-1")
	if len(interactions) != 1 || interactions[0].Source != "screenshot" {
		t.Errorf("interactions = %+v", interactions)
	}
}

func TestScreenshotLowConfidenceGoesToInbox(t *testing.T) {
	shot := models.ScreenshotSummary{
		AISummary:           models.EmptySummary("somebody mentioned a concert"),
		DetectedContactName: strPtr("Sarah"),
		Confidence:          0.69,
	}
	gw := &stubGateway{outcome: ai.Outcome{Screenshot: &shot}}
	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)
	ctx := context.Background()

	result, err := svc.ProcessScreenshot(ctx, "raw screenshot text")
	if err != nil {
		t.Fatalf("ProcessScreenshot: %v", err)
	}
	if result.Match.Matched() {
		t.Fatal("0.69 confidence must not match")
	}

	notes, _ := contacts.Unassigned(ctx)
	if len(notes) != 1 {
		t.Fatalf("inbox = %d notes, want 1", len(notes))
	}
	if notes[0].Text != "raw screenshot text" {
		t.Errorf("inbox text = %q", notes[0].Text)
	}

	// Nothing touched Sarah's record.
	if interactions, _ := contacts.Interactions(ctx, "sarah-1"); len(interactions) != 0 {
		t.Errorf("interactions = %d, want 0", len(interactions))
	}
}

func TestGiftIdeas(t *testing.T) {
	gw := &stubGateway{outcome: ai.Outcome{Ideas: []string{"pottery class voucher"}}}
	svc, contacts := newTestService(t, gw)
	seedSarah(t, contacts)

	ideas, err := svc.GiftIdeas(context.Background(), "sarah-1", "under 50")
	if err != nil {
		t.Fatalf("GiftIdeas: %v", err)
	}
	if len(ideas) != 1 || ideas[0] != "pottery class voucher" {
		t.Errorf("ideas = %v", ideas)
	}
}

func TestGiftIdeasUnknownContact(t *testing.T) {
	svc, _ := newTestService(t, &stubGateway{})
	if _, err := svc.GiftIdeas(context.Background(), "nope", ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
