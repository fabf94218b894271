package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Store implements ports.HistoryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.SessionRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.SessionRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.SessionRecord) error {
	// Copy to ensure isolation, similar to serialization
	copied := record.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so caller can't mutate store state directly by pointer
	return record.Clone(), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored sessions, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
