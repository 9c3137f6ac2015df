package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Omashka/circles-sub001/internal/models"
)

// MemoryStore is an in-process ContactStore, used in tests and when no
// database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	contacts     map[string]models.Contact
	interactions map[string][]models.Interaction
	unassigned   []models.UnassignedNote
}

var _ ContactStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:     make(map[string]models.Contact),
		interactions: make(map[string][]models.Interaction),
	}
}

func (m *MemoryStore) GetContact(_ context.Context, id string) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListContacts(_ context.Context) ([]models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) SaveContact(_ context.Context, c models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.ID] = c
	return nil
}

func (m *MemoryStore) AppendInteraction(_ context.Context, in models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[in.ContactID] = append(m.interactions[in.ContactID], in)
	return nil
}

func (m *MemoryStore) Interactions(_ context.Context, contactID string) ([]models.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ins := m.interactions[contactID]
	out := make([]models.Interaction, len(ins))
	copy(out, ins)
	return out, nil
}

func (m *MemoryStore) SaveUnassigned(_ context.Context, note models.UnassignedNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unassigned = append(m.unassigned, note)
	return nil
}

func (m *MemoryStore) Unassigned(_ context.Context) ([]models.UnassignedNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.UnassignedNote, len(m.unassigned))
	copy(out, m.unassigned)
	return out, nil
}
