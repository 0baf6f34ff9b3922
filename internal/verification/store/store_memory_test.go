package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"attesto/internal/verification/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) record(subject string, value int64) models.SubjectRecord {
	c, err := domain.NewCommitment(big.NewInt(value))
	s.Require().NoError(err)
	return models.SubjectRecord{
		Subject:    domain.SubjectID(subject),
		Commitment: c,
		Verified:   true,
	}
}

func (s *MemoryStoreSuite) TestPutAndGet() {
	s.Run("stores and retrieves a record", func() {
		record := s.record("did:example:alice", 42)
		s.Require().NoError(s.store.Put(s.ctx, record))

		found, err := s.store.Get(s.ctx, record.Subject)
		s.Require().NoError(err)
		s.Equal(record, found)
	})

	s.Run("returns ErrNotFound for unknown subject", func() {
		_, err := s.store.Get(s.ctx, domain.SubjectID("did:example:nobody"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestOverwrite() {
	subject := domain.SubjectID("did:example:alice")

	s.Require().NoError(s.store.Put(s.ctx, s.record(subject.String(), 42)))
	s.Require().NoError(s.store.Put(s.ctx, s.record(subject.String(), 43)))

	found, err := s.store.Get(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal(int64(43), found.Commitment.Big().Int64())
	s.True(found.Verified)
}

func (s *MemoryStoreSuite) TestConcurrentSameSubjectWrites() {
	subject := "did:example:alice"
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.store.Put(s.ctx, s.record(subject, int64(i)))
		}
	}()
	for i := 0; i < 200; i++ {
		_, _ = s.store.Get(s.ctx, domain.SubjectID(subject))
	}
	<-done

	// Last write wins; the record is never a blend of two writes.
	found, err := s.store.Get(s.ctx, domain.SubjectID(subject))
	s.Require().NoError(err)
	s.True(found.Verified)
	s.Equal(int64(199), found.Commitment.Big().Int64())
}
