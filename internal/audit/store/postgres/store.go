package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attesto/internal/audit"
	"attesto/pkg/domain"
	txcontext "attesto/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each event is written to audit_events for querying and to the outbox
// table for Kafka publishing in the same transaction as the caller's
// domain write, so no event can record a write that never committed.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID            string `json:"ID"`
	Timestamp     string `json:"Timestamp"`
	Action        string `json:"Action"`
	Actor         string `json:"Actor,omitempty"`
	Subject       string `json:"Subject"`
	Source        string `json:"Source,omitempty"`
	PolicyID      uint64 `json:"PolicyID,omitempty"`
	Version       uint64 `json:"Version,omitempty"`
	Commitment    string `json:"Commitment,omitempty"`
	Description   string `json:"Description,omitempty"`
	VerifierRef   string `json:"VerifierRef,omitempty"`
	TotalStake    uint64 `json:"TotalStake,omitempty"`
	SignerSetHash string `json:"SignerSetHash,omitempty"`
	Decision      string `json:"Decision,omitempty"`
	Reason        string `json:"Reason,omitempty"`
	RequestID     string `json:"RequestID,omitempty"`
}

// Append writes an audit event and its outbox entry.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	insertEvent := `
		INSERT INTO audit_events (
			id, timestamp, action, actor, subject, source_ref,
			policy_id, version, commitment, description, verifier_ref,
			total_stake, signer_set_hash, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	execer := txcontext.Resolve(ctx, s.db)
	_, err := execer.ExecContext(ctx, insertEvent,
		eventID,
		event.Timestamp,
		event.Action,
		event.Actor,
		event.Subject,
		event.Source,
		event.PolicyID,
		event.Version,
		event.Commitment,
		event.Description,
		event.VerifierRef,
		event.TotalStake,
		event.SignerSetHash,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:            eventID.String(),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		Action:        event.Action,
		Actor:         event.Actor,
		Subject:       event.Subject,
		Source:        event.Source,
		PolicyID:      event.PolicyID,
		Version:       event.Version,
		Commitment:    event.Commitment,
		Description:   event.Description,
		VerifierRef:   event.VerifierRef,
		TotalStake:    event.TotalStake,
		SignerSetHash: event.SignerSetHash,
		Decision:      event.Decision,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	insertOutbox := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = execer.ExecContext(ctx, insertOutbox,
		uuid.New(),
		"subject",
		event.Subject,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject, most recent first.
func (s *Store) ListBySubject(ctx context.Context, subject domain.SubjectID) ([]audit.Event, error) {
	query := `
		SELECT timestamp, action, actor, subject, source_ref,
			   policy_id, version, commitment, description, verifier_ref,
			   total_stake, signer_set_hash, decision, reason, request_id
		FROM audit_events
		WHERE subject = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		err := rows.Scan(
			&event.Timestamp,
			&event.Action,
			&event.Actor,
			&event.Subject,
			&event.Source,
			&event.PolicyID,
			&event.Version,
			&event.Commitment,
			&event.Description,
			&event.VerifierRef,
			&event.TotalStake,
			&event.SignerSetHash,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// NextBatch returns unpublished outbox entries in creation order.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.AggregateID, &entry.EventType, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished records that an outbox entry reached the sink.
func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox SET published_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
