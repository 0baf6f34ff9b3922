package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time
	Action     string
	Actor      string
	Subject    string
	Source     string
	PolicyID   uint64
	Version    uint64
	Commitment string
	// Description and VerifierRef identify the proof route on
	// policy verification events.
	Description string
	VerifierRef string
	// TotalStake and SignerSetHash carry the attestation outcome on
	// attestation events.
	TotalStake    uint64
	SignerSetHash string
	Decision      string
	Reason        string
	RequestID     string
}

// Action names every event the platform emits. Attestation and policy
// verification events form the commitment history for a subject; the
// rest track administrative changes.
type Action string

const (
	ActionAttestationRecorded  Action = "attestation_recorded"
	ActionPolicyVerified       Action = "policy_verified"
	ActionPolicySourceBound    Action = "policy_source_bound"
	ActionPolicyVersionSet     Action = "policy_version_set"
	ActionVerifierBound        Action = "verifier_bound"
	ActionVerifierThresholdSet Action = "verifier_threshold_set"
	ActionOwnershipTransferred Action = "ownership_transferred"
	ActionSubmitterChanged     Action = "attestation_submitter_changed"
)

// OutboxEntry is a pending downstream publication. Entries are written in
// the same transaction as the event they describe and relayed to Kafka by
// the outbox worker.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
