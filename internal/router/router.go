// Package router answers one question two ways: is this subject eligible
// under (policy, version)?
//
// The cached strategy trusts the verification store the policy is bound to
// and reads the subject's commitment from it. The fresh strategy skips the
// store, re-verifies an aggregate oracle attestation inline and takes the
// commitment from the caller. A deployment configures exactly one strategy;
// both end in the same proof check against the fixed public-input statement
// and emit the same policy_verified audit event.
package router

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"attesto/internal/audit"
	"attesto/internal/policy/models"
	"attesto/internal/quorum"
	"attesto/internal/router/metrics"
	"attesto/internal/zkverifier"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

var tracer = otel.Tracer("attesto/internal/router")

// Strategy names accepted by deployment configuration.
const (
	StrategyCached = "cached"
	StrategyFresh  = "fresh"
)

// Request is one eligibility check. The attestation fields at the bottom are
// consumed only by the fresh strategy; the cached strategy derives the
// commitment from the bound verification store instead.
type Request struct {
	PolicyID    domain.PolicyID
	Version     domain.Version
	Description domain.VerifierDesc
	Subject     domain.SubjectID
	Proof       []byte

	Commitment domain.Commitment
	MsgHash    [32]byte
	RefBlock   uint64
	Material   quorum.Material
}

// Result is the statement a proof was accepted against.
type Result struct {
	PolicyID    domain.PolicyID
	Version     domain.Version
	Description domain.VerifierDesc
	VerifierRef domain.VerifierRef
	Commitment  domain.Commitment
	Threshold   domain.Threshold
}

// Service checks subject eligibility for a policy at a version.
type Service interface {
	VerifyAll(ctx context.Context, req Request) (*Result, error)
}

// PolicyReader provides the binding lookups both strategies gate on.
type PolicyReader interface {
	Binding(ctx context.Context, policyID domain.PolicyID) (models.Binding, error)
	VerifierBinding(ctx context.Context, desc domain.VerifierDesc) (models.VerifierBinding, error)
}

// VerifierResolver maps verifier refs to live proof verifiers.
type VerifierResolver interface {
	Resolve(ref domain.VerifierRef) (zkverifier.Verifier, error)
}

// AuditPublisher records successful checks. Emission is part of the check
// contract, not best-effort.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// base carries the collaborators and the pipeline tail both strategies
// share: verifier resolution, the proof check and the audit emission.
type base struct {
	policies  PolicyReader
	verifiers VerifierResolver
	publisher AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures optional dependencies on either strategy.
type Option func(*base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) {
		b.metrics = m
	}
}

func newBase(policies PolicyReader, verifiers VerifierResolver, publisher AuditPublisher, opts ...Option) base {
	b := base{
		policies:  policies,
		verifiers: verifiers,
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// latestVersion loads the policy binding and rejects proofs that target
// anything but the published version. An unconfigured policy has latest
// version zero, so every real proof against it mismatches.
func (b *base) latestVersion(ctx context.Context, policyID domain.PolicyID, version domain.Version) (models.Binding, error) {
	binding, err := b.policies.Binding(ctx, policyID)
	if err != nil {
		return models.Binding{}, err
	}
	if version != binding.LatestVersion {
		return models.Binding{}, dErrors.New(dErrors.CodeVersionMismatch,
			"proof targets version "+version.String()+", policy "+policyID.String()+" is at "+binding.LatestVersion.String())
	}
	return binding, nil
}

// prove runs the strategy-independent tail: resolve the verifier bound to
// the description, check the proof against the fixed statement and emit the
// policy_verified event.
func (b *base) prove(ctx context.Context, req Request, commitment domain.Commitment) (*Result, error) {
	vb, err := b.policies.VerifierBinding(ctx, req.Description)
	if err != nil {
		return nil, err
	}
	if vb.Ref.IsDisabled() {
		return nil, dErrors.New(dErrors.CodeVerifierNotBound, "no verifier bound under "+req.Description.String())
	}
	verifier, err := b.verifiers.Resolve(vb.Ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVerifierNotBound, "verifier "+vb.Ref.String()+" is not registered")
	}

	inputs := zkverifier.PublicInputs{
		PolicyID:   uint64(req.PolicyID),
		Version:    uint64(req.Version),
		Commitment: commitment,
		Threshold:  uint64(vb.Threshold),
	}
	if err := verifier.VerifyProof(ctx, req.Proof, inputs); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProofInvalid, "proof rejected for policy "+req.PolicyID.String())
	}

	event := audit.Event{
		Action:      string(audit.ActionPolicyVerified),
		Actor:       requestcontext.Identity(ctx).String(),
		Subject:     req.Subject.String(),
		PolicyID:    uint64(req.PolicyID),
		Version:     uint64(req.Version),
		Description: req.Description.String(),
		VerifierRef: vb.Ref.String(),
	}
	if err := b.publisher.Emit(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "eligibility confirmed but audit emit failed")
	}

	b.logger.InfoContext(ctx, "policy verified",
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
		"policy_id", req.PolicyID.String(),
		"version", req.Version.String(),
		"description", req.Description.String(),
		"subject", req.Subject.String(),
	)

	return &Result{
		PolicyID:    req.PolicyID,
		Version:     req.Version,
		Description: req.Description,
		VerifierRef: vb.Ref,
		Commitment:  commitment,
		Threshold:   vb.Threshold,
	}, nil
}

// observe closes out one check on the span and the metrics.
func (b *base) observe(span trace.Span, strategy string, start time.Time, err error) {
	outcome := "verified"
	if err != nil {
		outcome = string(dErrors.GetCode(err))
		span.RecordError(err)
	}
	b.metrics.IncrementCheck(strategy, outcome)
	b.metrics.ObserveCheckLatency(strategy, time.Since(start))
}
