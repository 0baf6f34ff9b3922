package memory

import (
	"context"
	"sync"

	"attesto/internal/audit"
	"attesto/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.SubjectID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.SubjectID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[domain.SubjectID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subject := domain.SubjectID(event.Subject)
	s.events[subject] = append(s.events[subject], event)
	return nil
}

// ListBySubject returns the subject's events, most recent first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.SubjectID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[subject]
	events := make([]audit.Event, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		events = append(events, stored[i])
	}
	return events, nil
}
