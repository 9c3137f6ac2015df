// Package models defines data structures shared across the circles core.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date with no time component, encoded as "2006-01-02".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes the date as a "2006-01-02" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "2006-01-02" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Year, d.Month, d.Day = t.Date()
	return nil
}

// AISummary is the structured result of summarizing free text about a
// contact. All list fields are non-nil once parsed; optional scalars are
// pointers so "absent" round-trips as absent.
type AISummary struct {
	Summary         string   `json:"summary"`
	Interests       []string `json:"interests"`
	Events          []string `json:"events"`
	Dates           []string `json:"dates"`
	WorkInfo        *string  `json:"workInfo,omitempty"`
	TopicsToAvoid   []string `json:"topicsToAvoid"`
	FamilyDetails   *string  `json:"familyDetails,omitempty"`
	TravelNotes     *string  `json:"travelNotes,omitempty"`
	ReligiousEvents []string `json:"religiousEvents"`
	Birthday        *Date    `json:"birthday,omitempty"`
}

// ScreenshotSummary extends AISummary with the contact-detection fields
// returned by the screenshot-import operation.
type ScreenshotSummary struct {
	AISummary
	DetectedContactName *string `json:"detectedContactName,omitempty"`
	Confidence          float64 `json:"confidence"`
}

// Normalize replaces nil list fields with empty slices. Decoded payloads
// always pass through here so callers never see a null list.
func (s *AISummary) Normalize() {
	if s.Interests == nil {
		s.Interests = []string{}
	}
	if s.Events == nil {
		s.Events = []string{}
	}
	if s.Dates == nil {
		s.Dates = []string{}
	}
	if s.TopicsToAvoid == nil {
		s.TopicsToAvoid = []string{}
	}
	if s.ReligiousEvents == nil {
		s.ReligiousEvents = []string{}
	}
}

// EmptySummary returns a structurally valid summary with every list empty
// and the given text as the summary body.
func EmptySummary(text string) AISummary {
	s := AISummary{Summary: text}
	s.Normalize()
	return s
}

// CleanCodeFence strips surrounding Markdown code-fence markup from model
// output. Models routinely wrap JSON in ```json ... ``` despite being told
// not to.
func CleanCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop a language tag like "json" on the opening fence line.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		if first == "" || isFenceTag(first) {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseResult distinguishes a successful structured parse from a degraded
// one. Degraded results keep the cleaned raw text so nothing is lost.
type ParseResult struct {
	Parsed   *AISummary
	Degraded bool
	Raw      string
}

// Summary maps the result to a usable AISummary: the parsed value, or an
// all-empty summary carrying the raw text when degraded.
func (r ParseResult) Summary() AISummary {
	if r.Parsed != nil {
		return *r.Parsed
	}
	return EmptySummary(r.Raw)
}

// ParseSummary decodes model output into an AISummary. The text is
// unwrapped from code-fence markup first. A failed decode is not an
// error: it degrades to the cleaned raw text.
func ParseSummary(text string) ParseResult {
	cleaned := CleanCodeFence(text)

	var s AISummary
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return ParseResult{Degraded: true, Raw: cleaned}
	}
	s.Normalize()
	return ParseResult{Parsed: &s, Raw: cleaned}
}

// ParseScreenshotSummary decodes screenshot-import model output,
// degrading the same way ParseSummary does. Confidence is clipped
// to [0,1].
func ParseScreenshotSummary(text string) (ScreenshotSummary, bool) {
	cleaned := CleanCodeFence(text)

	var s ScreenshotSummary
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return ScreenshotSummary{AISummary: EmptySummary(cleaned)}, true
	}
	s.Normalize()
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return s, false
}

// ParseGiftIdeas decodes gift-idea model output: either a bare JSON array
// or an {"ideas": [...]} object. Degrades to an empty list.
func ParseGiftIdeas(text string) []string {
	cleaned := CleanCodeFence(text)

	var ideas []string
	if err := json.Unmarshal([]byte(cleaned), &ideas); err == nil {
		return ideas
	}
	var wrapped struct {
		Ideas []string `json:"ideas"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && wrapped.Ideas != nil {
		return wrapped.Ideas
	}
	return []string{}
}
