// Package store persists contacts, their interaction history, and the
// unassigned-notes inbox.
package store

import (
	"context"
	"errors"

	"github.com/Omashka/circles-sub001/internal/models"
)

// ErrNotFound is returned when a contact does not exist.
var ErrNotFound = errors.New("store: not found")

// ContactStore is the persistence boundary for contact records. The AI
// core treats it as an external collaborator.
type ContactStore interface {
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	ListContacts(ctx context.Context) ([]models.Contact, error)
	// SaveContact upserts the contact.
	SaveContact(ctx context.Context, c models.Contact) error
	AppendInteraction(ctx context.Context, in models.Interaction) error
	Interactions(ctx context.Context, contactID string) ([]models.Interaction, error)
	// SaveUnassigned files content that could not be attributed to a
	// contact into the inbox for manual resolution.
	SaveUnassigned(ctx context.Context, note models.UnassignedNote) error
	Unassigned(ctx context.Context) ([]models.UnassignedNote, error)
}

// Candidates projects contacts onto the (id, name) pairs the contact
// matcher consumes.
func Candidates(contacts []models.Contact) []models.CandidateContact {
	out := make([]models.CandidateContact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, models.CandidateContact{ID: c.ID, Name: c.Name})
	}
	return out
}
