// Package merge folds AI summaries into contact profiles.
package merge

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Omashka/circles-sub001/internal/models"
)

// Apply merges a summary into the contact and returns the interaction
// record to append alongside it. List fields are set-unioned: existing
// entries are never removed, duplicates (case-insensitive) are not
// added. Scalar fields are overwritten only when the summary carries a
// value, so an absent field never erases known information.
func Apply(c *models.Contact, s models.AISummary, rawInput, source string) models.Interaction {
	c.Interests = union(c.Interests, s.Interests)
	c.TopicsToAvoid = union(c.TopicsToAvoid, s.TopicsToAvoid)
	c.ReligiousEvents = union(c.ReligiousEvents, s.ReligiousEvents)

	if s.WorkInfo != nil && *s.WorkInfo != "" {
		c.WorkInfo = *s.WorkInfo
	}
	if s.FamilyDetails != nil && *s.FamilyDetails != "" {
		c.FamilyDetails = *s.FamilyDetails
	}
	if s.TravelNotes != nil && *s.TravelNotes != "" {
		c.TravelNotes = *s.TravelNotes
	}
	if s.Birthday != nil {
		b := *s.Birthday
		c.Birthday = &b
	}
	c.UpdatedAt = time.Now()

	return models.Interaction{
		ID:        uuid.New().String(),
		ContactID: c.ID,
		Summary:   s.Summary,
		RawInput:  rawInput,
		Source:    source,
		CreatedAt: time.Now(),
	}
}

// union appends entries from add that are not already in base,
// preserving base order and the order of new entries. Comparison is
// case-insensitive after trimming; the stored form keeps the original
// casing of whichever entry came first.
func union(base, add []string) []string {
	if len(add) == 0 {
		return base
	}

	seen := make(map[string]bool, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, v := range base {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	for _, v := range add {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
