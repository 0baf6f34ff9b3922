package store

import (
	"context"
	"sync"

	"attesto/internal/verification/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store for subject records. The single
// mutex also serializes same-subject writes, which keeps overwrites atomic
// without per-key locking.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.SubjectID]models.SubjectRecord
}

// NewInMemory creates an empty in-memory subject record store.
func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[domain.SubjectID]models.SubjectRecord),
	}
}

// Put stores or overwrites the record for its subject.
func (s *InMemory) Put(_ context.Context, record models.SubjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Subject] = record
	return nil
}

// Get retrieves the record for a subject.
// Returns sentinel.ErrNotFound if no record exists.
func (s *InMemory) Get(_ context.Context, subject domain.SubjectID) (models.SubjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[subject]
	if !ok {
		return models.SubjectRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}
