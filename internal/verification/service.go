// Package verification is the system of record for who passed identity
// verification and under which commitment. Writes are restricted to the
// source's manager (the attestation gateway); reads are open and absent
// subjects resolve to the zero record rather than an error.
package verification

import (
	"context"
	"errors"
	"log/slog"

	"attesto/internal/verification/models"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// Store persists subject records. Implementations must make Put a total
// overwrite and signal absent subjects with sentinel.ErrNotFound.
type Store interface {
	Put(ctx context.Context, record models.SubjectRecord) error
	Get(ctx context.Context, subject domain.SubjectID) (models.SubjectRecord, error)
}

// Service wraps a Store with the manager write restriction.
type Service struct {
	source  domain.SourceRef
	manager domain.Identity
	store   Store
	logger  *slog.Logger
}

// Option configures optional dependencies.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a verification source. The manager identity is the
// only principal allowed to record; everyone may read.
func NewService(source domain.SourceRef, manager domain.Identity, store Store, opts ...Option) *Service {
	s := &Service{
		source:  source,
		manager: manager,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source returns the ref this service is registered under.
func (s *Service) Source() domain.SourceRef {
	return s.source
}

// Record marks a subject verified under the given commitment, overwriting
// any previous record. Only the manager identity may call it; a denied call
// changes nothing.
//
// Errors: CodeUnauthorized when the caller is not the manager, CodeInternal
// on store failure.
func (s *Service) Record(ctx context.Context, subject domain.SubjectID, commitment domain.Commitment) error {
	caller := requestcontext.Identity(ctx)
	if caller.IsNil() || caller != s.manager {
		s.logger.WarnContext(ctx, "verification record denied",
			"request_id", requestcontext.RequestID(ctx),
			"source", s.source.String(),
			"caller", caller.String(),
		)
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the verification manager")
	}

	record := models.SubjectRecord{
		Subject:    subject,
		Commitment: commitment,
		Verified:   true,
	}
	if err := s.store.Put(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store subject record")
	}
	return nil
}

// Restore puts back a previously read snapshot, including the zero record.
// It carries the same manager restriction as Record and exists so callers
// that pair a write with a downstream effect can undo the write when the
// effect fails.
func (s *Service) Restore(ctx context.Context, record models.SubjectRecord) error {
	caller := requestcontext.Identity(ctx)
	if caller.IsNil() || caller != s.manager {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the verification manager")
	}
	if err := s.store.Put(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore subject record")
	}
	return nil
}

// Get returns the subject's record, or the zero record when none exists.
func (s *Service) Get(ctx context.Context, subject domain.SubjectID) (models.SubjectRecord, error) {
	record, err := s.store.Get(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Zero(subject), nil
	}
	if err != nil {
		return models.SubjectRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject record")
	}
	return record, nil
}

// IsVerified reports whether the subject holds a verified record.
func (s *Service) IsVerified(ctx context.Context, subject domain.SubjectID) (bool, error) {
	record, err := s.Get(ctx, subject)
	if err != nil {
		return false, err
	}
	return record.Verified, nil
}

// Commitment returns the subject's recorded commitment, zero when absent.
func (s *Service) Commitment(ctx context.Context, subject domain.SubjectID) (domain.Commitment, error) {
	record, err := s.Get(ctx, subject)
	if err != nil {
		return domain.Commitment{}, err
	}
	return record.Commitment, nil
}
