package httptransport

import (
	"time"

	"attesto/internal/audit"
	"attesto/internal/router"
	"attesto/internal/verification/models"
)

// AttestationResponse is the HTTP response for POST /attestations.
type AttestationResponse struct {
	Status   string `json:"status"`
	Source   string `json:"source"`
	Subject  string `json:"subject"`
	RefBlock uint64 `json:"ref_block"`
}

// EligibilityResponse is the HTTP response for
// POST /policies/{policyID}/verify. It echoes the exact statement the proof
// was accepted against.
type EligibilityResponse struct {
	Eligible    bool   `json:"eligible"`
	PolicyID    uint64 `json:"policy_id"`
	Version     uint64 `json:"version"`
	Description string `json:"description"`
	VerifierRef string `json:"verifier_ref"`
	Commitment  string `json:"commitment"`
	Threshold   uint64 `json:"threshold"`
}

// FromVerifyResult converts a router result to an HTTP response.
func FromVerifyResult(result *router.Result) *EligibilityResponse {
	return &EligibilityResponse{
		Eligible:    true,
		PolicyID:    uint64(result.PolicyID),
		Version:     uint64(result.Version),
		Description: result.Description.String(),
		VerifierRef: result.VerifierRef.String(),
		Commitment:  result.Commitment.String(),
		Threshold:   uint64(result.Threshold),
	}
}

// VerifierBindingResponse is the HTTP response for verifier admin writes.
type VerifierBindingResponse struct {
	Description string `json:"description"`
	VerifierRef string `json:"verifier_ref"`
	Disabled    bool   `json:"disabled"`
}

// ThresholdResponse is the HTTP response for threshold admin writes.
type ThresholdResponse struct {
	Description string `json:"description"`
	Threshold   uint64 `json:"threshold"`
}

// PolicySourceResponse is the HTTP response for policy source admin writes.
type PolicySourceResponse struct {
	PolicyID uint64 `json:"policy_id"`
	Source   string `json:"source"`
}

// PolicyVersionResponse is the HTTP response for policy version admin writes.
type PolicyVersionResponse struct {
	PolicyID uint64 `json:"policy_id"`
	Version  uint64 `json:"version"`
}

// RoleResponse is the HTTP response for POST /admin/roles/{role}.
type RoleResponse struct {
	Role   string `json:"role"`
	Holder string `json:"holder"`
}

// VerificationRecordResponse is the HTTP response for
// GET /subjects/{subject}/verification. Absent subjects read as the zero
// record, so the endpoint never 404s on an unknown subject.
type VerificationRecordResponse struct {
	Subject    string `json:"subject"`
	Source     string `json:"source"`
	Verified   bool   `json:"verified"`
	Commitment string `json:"commitment,omitempty"`
}

// FromSubjectRecord converts a subject record to an HTTP response.
func FromSubjectRecord(source string, record models.SubjectRecord) *VerificationRecordResponse {
	resp := &VerificationRecordResponse{
		Subject:  record.Subject.String(),
		Source:   source,
		Verified: record.Verified,
	}
	if !record.Commitment.IsZero() {
		resp.Commitment = record.Commitment.String()
	}
	return resp
}

// AuditEventResponse is one audit event on the wire. Zero-valued fields are
// omitted so attestation and policy events stay compact.
type AuditEventResponse struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Source        string    `json:"source,omitempty"`
	PolicyID      uint64    `json:"policy_id,omitempty"`
	Version       uint64    `json:"version,omitempty"`
	Commitment    string    `json:"commitment,omitempty"`
	Description   string    `json:"description,omitempty"`
	VerifierRef   string    `json:"verifier_ref,omitempty"`
	TotalStake    uint64    `json:"total_stake,omitempty"`
	SignerSetHash string    `json:"signer_set_hash,omitempty"`
	Decision      string    `json:"decision,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// AuditEventsResponse is the HTTP response for GET /audit/events.
type AuditEventsResponse struct {
	Events []AuditEventResponse `json:"events"`
}

// FromAuditEvents converts stored audit events to the wire shape.
func FromAuditEvents(events []audit.Event) *AuditEventsResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			Timestamp:     e.Timestamp,
			Action:        e.Action,
			Actor:         e.Actor,
			Subject:       e.Subject,
			Source:        e.Source,
			PolicyID:      e.PolicyID,
			Version:       e.Version,
			Commitment:    e.Commitment,
			Description:   e.Description,
			VerifierRef:   e.VerifierRef,
			TotalStake:    e.TotalStake,
			SignerSetHash: e.SignerSetHash,
			Decision:      e.Decision,
			Reason:        e.Reason,
			RequestID:     e.RequestID,
		})
	}
	return &AuditEventsResponse{Events: out}
}
