package match

import (
	"testing"

	"github.com/Omashka/circles-sub001/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMatchConfidenceBoundary(t *testing.T) {
	candidates := []models.CandidateContact{
		{ID: "c1", Name: "Sarah Miller"},
		{ID: "c2", Name: "Tom Okafor"},
	}

	tests := []struct {
		name       string
		detected   *string
		confidence float64
		wantID     string
	}{
		{"below threshold", strPtr("Sarah Miller"), 0.69, ""},
		{"at threshold", strPtr("Sarah Miller"), 0.70, "c1"},
		{"above threshold", strPtr("Tom Okafor"), 0.95, "c2"},
		{"full confidence", strPtr("Sarah Miller"), 1.0, "c1"},
		{"zero confidence", strPtr("Sarah Miller"), 0, ""},
		{"no detection", nil, 0.99, ""},
		{"empty name", strPtr(""), 0.99, ""},
		{"unknown name", strPtr("Nobody Known"), 0.99, ""},
		{"case insensitive", strPtr("sarah miller"), 0.80, "c1"},
		{"padded name", strPtr("  Sarah Miller  "), 0.80, "c1"},
	}

	m := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot := models.ScreenshotSummary{
				AISummary:           models.EmptySummary("note"),
				DetectedContactName: tt.detected,
				Confidence:          tt.confidence,
			}
			result := m.Match(shot, candidates)

			if result.ContactID != tt.wantID {
				t.Errorf("ContactID = %q, want %q", result.ContactID, tt.wantID)
			}
			if result.Matched() != (tt.wantID != "") {
				t.Errorf("Matched() = %v, inconsistent with ContactID %q", result.Matched(), result.ContactID)
			}
			if result.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v (must pass through)", result.Confidence, tt.confidence)
			}
		})
	}
}

func TestMatchCarriesSummary(t *testing.T) {
	shot := models.ScreenshotSummary{
		AISummary:           models.AISummary{Summary: "lunch plans", Interests: []string{"ramen"}},
		DetectedContactName: strPtr("Ana"),
		Confidence:          0.9,
	}
	result := New().Match(shot, []models.CandidateContact{{ID: "a", Name: "Ana"}})

	if result.Summary.Summary != "lunch plans" {
		t.Errorf("summary not carried: %+v", result.Summary)
	}
	if len(result.Summary.Interests) != 1 || result.Summary.Interests[0] != "ramen" {
		t.Errorf("interests not carried: %v", result.Summary.Interests)
	}
}

func TestMatchNoCandidates(t *testing.T) {
	shot := models.ScreenshotSummary{
		AISummary:           models.EmptySummary("note"),
		DetectedContactName: strPtr("Sarah"),
		Confidence:          0.99,
	}
	if result := New().Match(shot, nil); result.Matched() {
		t.Error("match with no candidates should route to inbox")
	}
}
