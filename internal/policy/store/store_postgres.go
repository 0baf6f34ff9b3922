package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attesto/internal/policy/models"
	"attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
	txcontext "attesto/pkg/platform/tx"
)

// Postgres persists policy and verifier bindings. Each setter upserts one
// column so independent bindings never clobber each other.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed binding store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// SetPolicySource upserts the source a policy trusts.
func (s *Postgres) SetPolicySource(ctx context.Context, policyID domain.PolicyID, source domain.SourceRef) error {
	query := `
		INSERT INTO policy_bindings (policy_id, source_ref, latest_version, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (policy_id)
		DO UPDATE SET source_ref = EXCLUDED.source_ref, updated_at = NOW()
	`
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, uint64(policyID), source.String()); err != nil {
		return fmt.Errorf("upsert policy source: %w", err)
	}
	return nil
}

// SetPolicyVersion upserts the policy's current version.
func (s *Postgres) SetPolicyVersion(ctx context.Context, policyID domain.PolicyID, version domain.Version) error {
	query := `
		INSERT INTO policy_bindings (policy_id, source_ref, latest_version, updated_at)
		VALUES ($1, '', $2, NOW())
		ON CONFLICT (policy_id)
		DO UPDATE SET latest_version = EXCLUDED.latest_version, updated_at = NOW()
	`
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, uint64(policyID), uint64(version)); err != nil {
		return fmt.Errorf("upsert policy version: %w", err)
	}
	return nil
}

// GetPolicyBinding retrieves a policy's binding.
// Returns sentinel.ErrNotFound if the policy has never been configured.
func (s *Postgres) GetPolicyBinding(ctx context.Context, policyID domain.PolicyID) (models.Binding, error) {
	query := `
		SELECT source_ref, latest_version
		FROM policy_bindings
		WHERE policy_id = $1
	`
	var (
		source  string
		version uint64
	)
	err := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query, uint64(policyID)).Scan(&source, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Binding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Binding{}, fmt.Errorf("select policy binding: %w", err)
	}
	return models.Binding{
		Source:        domain.SourceRef(source),
		LatestVersion: domain.Version(version),
	}, nil
}

// SetVerifierRef upserts the verifier backing a description.
func (s *Postgres) SetVerifierRef(ctx context.Context, desc domain.VerifierDesc, ref domain.VerifierRef) error {
	query := `
		INSERT INTO verifier_bindings (description, verifier_ref, threshold, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (description)
		DO UPDATE SET verifier_ref = EXCLUDED.verifier_ref, updated_at = NOW()
	`
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, desc.String(), ref.String()); err != nil {
		return fmt.Errorf("upsert verifier ref: %w", err)
	}
	return nil
}

// SetVerifierThreshold upserts the threshold for a description.
func (s *Postgres) SetVerifierThreshold(ctx context.Context, desc domain.VerifierDesc, threshold domain.Threshold) error {
	query := `
		INSERT INTO verifier_bindings (description, verifier_ref, threshold, updated_at)
		VALUES ($1, '', $2, NOW())
		ON CONFLICT (description)
		DO UPDATE SET threshold = EXCLUDED.threshold, updated_at = NOW()
	`
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, desc.String(), uint64(threshold)); err != nil {
		return fmt.Errorf("upsert verifier threshold: %w", err)
	}
	return nil
}

// GetVerifierBinding retrieves a description's binding.
// Returns sentinel.ErrNotFound if the description has never been configured.
func (s *Postgres) GetVerifierBinding(ctx context.Context, desc domain.VerifierDesc) (models.VerifierBinding, error) {
	query := `
		SELECT verifier_ref, threshold
		FROM verifier_bindings
		WHERE description = $1
	`
	var (
		ref       string
		threshold uint64
	)
	err := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query, desc.String()).Scan(&ref, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VerifierBinding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.VerifierBinding{}, fmt.Errorf("select verifier binding: %w", err)
	}
	return models.VerifierBinding{
		Ref:       domain.VerifierRef(ref),
		Threshold: domain.Threshold(threshold),
	}, nil
}
