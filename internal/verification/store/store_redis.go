package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"attesto/internal/verification/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

const subjectKeyPrefix = "verification:subject:"

// Redis is a Redis-backed subject record store for deployments where
// several instances share verification state. One hash per subject, keyed
// by source so multiple sources can share a Redis.
type Redis struct {
	client *redis.Client
	source domain.SourceRef
}

// NewRedis constructs a Redis-backed subject record store scoped to a source.
func NewRedis(client *redis.Client, source domain.SourceRef) *Redis {
	return &Redis{
		client: client,
		source: source,
	}
}

func (s *Redis) key(subject domain.SubjectID) string {
	return subjectKeyPrefix + s.source.String() + ":" + subject.String()
}

// Put stores or overwrites the record for its subject. HSet writes all
// fields in one command, so the overwrite is atomic.
func (s *Redis) Put(ctx context.Context, record models.SubjectRecord) error {
	verified := "0"
	if record.Verified {
		verified = "1"
	}
	err := s.client.HSet(ctx, s.key(record.Subject),
		"commitment", record.Commitment.String(),
		"verified", verified,
	).Err()
	if err != nil {
		return fmt.Errorf("redis put subject record: %w", err)
	}
	return nil
}

// Get retrieves the record for a subject.
// Returns sentinel.ErrNotFound if no record exists.
func (s *Redis) Get(ctx context.Context, subject domain.SubjectID) (models.SubjectRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(subject)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return models.SubjectRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.SubjectRecord{}, fmt.Errorf("redis get subject record: %w", err)
	}

	commitment, err := domain.ParseCommitment(fields["commitment"])
	if err != nil {
		return models.SubjectRecord{}, fmt.Errorf("corrupt commitment for subject %s: %w", subject, err)
	}

	return models.SubjectRecord{
		Subject:    subject,
		Commitment: commitment,
		Verified:   fields["verified"] == "1",
	}, nil
}
