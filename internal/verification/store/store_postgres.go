package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attesto/internal/verification/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
	txcontext "attesto/pkg/platform/tx"
)

// Postgres is the durable subject record store. Writes honor an ambient
// transaction from pkg/platform/tx so a record and its audit outbox row can
// commit together.
type Postgres struct {
	db     *sql.DB
	source domain.SourceRef
}

// NewPostgres constructs a PostgreSQL-backed subject record store scoped to
// a source. Sources share the table; the source_ref column partitions it.
func NewPostgres(db *sql.DB, source domain.SourceRef) *Postgres {
	return &Postgres{db: db, source: source}
}

// Put stores or overwrites the record for its subject. The upsert is a
// single statement, so concurrent writers serialize per row.
func (s *Postgres) Put(ctx context.Context, record models.SubjectRecord) error {
	query := `
		INSERT INTO subject_records (source_ref, subject, commitment, verified, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (source_ref, subject)
		DO UPDATE SET commitment = EXCLUDED.commitment,
		              verified   = EXCLUDED.verified,
		              updated_at = NOW()
	`
	_, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query,
		s.source.String(),
		record.Subject.String(),
		record.Commitment.String(),
		record.Verified,
	)
	if err != nil {
		return fmt.Errorf("upsert subject record: %w", err)
	}
	return nil
}

// Get retrieves the record for a subject.
// Returns sentinel.ErrNotFound if no record exists.
func (s *Postgres) Get(ctx context.Context, subject domain.SubjectID) (models.SubjectRecord, error) {
	query := `
		SELECT commitment, verified
		FROM subject_records
		WHERE source_ref = $1 AND subject = $2
	`
	var (
		commitmentHex string
		verified      bool
	)
	err := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query,
		s.source.String(), subject.String(),
	).Scan(&commitmentHex, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SubjectRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.SubjectRecord{}, fmt.Errorf("select subject record: %w", err)
	}

	commitment, err := domain.ParseCommitment(commitmentHex)
	if err != nil {
		return models.SubjectRecord{}, fmt.Errorf("corrupt commitment for subject %s: %w", subject, err)
	}

	return models.SubjectRecord{
		Subject:    subject,
		Commitment: commitment,
		Verified:   verified,
	}, nil
}
