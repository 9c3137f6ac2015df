package models

import "time"

// OperationKind identifies the AI work a queued operation carries.
type OperationKind string

const (
	OpVoiceSummarization OperationKind = "voiceSummarization"
	OpScreenshotImport   OperationKind = "screenshotImport"
	OpGiftIdeas          OperationKind = "giftIdeas"
)

// Valid reports whether the kind is one of the three known operations.
func (k OperationKind) Valid() bool {
	switch k {
	case OpVoiceSummarization, OpScreenshotImport, OpGiftIdeas:
		return true
	}
	return false
}

// OperationPayload is the raw input of a deferred AI operation.
type OperationPayload struct {
	Text        string             `json:"text"`
	ContactID   string             `json:"contact_id,omitempty"`
	ContactName string             `json:"contact_name,omitempty"`
	Candidates  []CandidateContact `json:"candidates,omitempty"`
	Interests   []string           `json:"interests,omitempty"`
	Budget      string             `json:"budget,omitempty"`
}

// QueuedOperation is a unit of AI work deferred because synchronous
// completion failed. Immutable once created except for RetryCount;
// owned exclusively by the operation queue.
type QueuedOperation struct {
	ID         string           `json:"id"`
	Kind       OperationKind    `json:"kind"`
	Payload    OperationPayload `json:"payload"`
	CreatedAt  time.Time        `json:"created_at"`
	RetryCount int              `json:"retry_count"`
}
