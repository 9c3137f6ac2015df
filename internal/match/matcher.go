// Package match routes screenshot-extracted content to a contact or to
// the unassigned inbox based on the model's detection confidence.
package match

import (
	"strings"

	"github.com/Omashka/circles-sub001/internal/models"
)

// ConfidenceThreshold is the minimum detection confidence, inclusive,
// for attributing content to a contact. Below it, content goes to the
// unassigned inbox rather than risk polluting the wrong profile.
const ConfidenceThreshold = 0.70

// Matcher decides whether a screenshot summary attaches to a known
// contact. It is pure policy: no I/O, no persistence.
type Matcher struct {
	threshold float64
}

// New creates a matcher with the default threshold.
func New() *Matcher {
	return &Matcher{threshold: ConfidenceThreshold}
}

// Match resolves a screenshot summary against the candidate list.
// A result routes to a contact only when all three hold: the model
// named a contact, that name belongs to a candidate, and the confidence
// is at or above the threshold. The detected name is matched
// case-insensitively; the model echoes names it was given but not
// always with identical casing.
func (m *Matcher) Match(s models.ScreenshotSummary, candidates []models.CandidateContact) models.ContactMatchResult {
	result := models.ContactMatchResult{
		Confidence: s.Confidence,
		Summary:    s.AISummary,
	}

	if s.DetectedContactName == nil || *s.DetectedContactName == "" {
		return result
	}
	if s.Confidence < m.threshold {
		return result
	}

	name := strings.TrimSpace(*s.DetectedContactName)
	for _, c := range candidates {
		if strings.EqualFold(c.Name, name) {
			result.ContactID = c.ID
			return result
		}
	}

	// The model invented a name not on the candidate list; treat it the
	// same as no detection.
	return result
}
