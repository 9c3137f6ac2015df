package models

import "time"

// Contact is a person the user tracks. Profile list fields are merged
// with set-union semantics, never replaced.
type Contact struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	WorkInfo        string    `json:"work_info,omitempty"`
	FamilyDetails   string    `json:"family_details,omitempty"`
	TravelNotes     string    `json:"travel_notes,omitempty"`
	Interests       []string  `json:"interests"`
	TopicsToAvoid   []string  `json:"topics_to_avoid"`
	ReligiousEvents []string  `json:"religious_events"`
	Birthday        *Date     `json:"birthday,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interaction is one recorded note about a contact: the AI summary plus
// the raw input it was derived from.
type Interaction struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Summary   string    `json:"summary"`
	RawInput  string    `json:"raw_input"`
	Source    string    `json:"source"` // "voice" or "screenshot"
	CreatedAt time.Time `json:"created_at"`
}

// UnassignedNote holds extracted content that could not be confidently
// attributed to a contact, pending manual resolution.
type UnassignedNote struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateContact is the (id, name) pair handed to the contact matcher.
type CandidateContact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ContactMatchResult is the outcome of matching free text against the
// candidate list. ContactID is empty when no contact cleared the
// confidence threshold. Ephemeral, never persisted.
type ContactMatchResult struct {
	ContactID  string
	Confidence float64
	Summary    AISummary
}

// Matched reports whether the result routes to a specific contact.
func (r ContactMatchResult) Matched() bool {
	return r.ContactID != ""
}
