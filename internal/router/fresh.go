package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesto/internal/quorum"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

// Fresh verifies eligibility without a verification store: the caller
// supplies the commitment together with an aggregate oracle attestation,
// and the quorum registry re-checks the attestation on every call.
type Fresh struct {
	base
	registry quorum.Registry
}

// NewFresh constructs the fresh strategy.
func NewFresh(
	policies PolicyReader,
	registry quorum.Registry,
	verifiers VerifierResolver,
	publisher AuditPublisher,
	opts ...Option,
) *Fresh {
	return &Fresh{
		base:     newBase(policies, verifiers, publisher, opts...),
		registry: registry,
	}
}

// VerifyAll checks the subject's proof against the caller-supplied
// commitment after verifying the inline attestation.
//
// Errors: CodeVersionMismatch (proof targets a non-current version),
// CodeOracleAttestation (quorum registry rejected the inline attestation),
// CodeVerifierNotBound (description disabled or verifier unregistered),
// CodeProofInvalid (proof rejected), CodeInternal (audit failure).
func (f *Fresh) VerifyAll(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "router.VerifyAll", trace.WithAttributes(
		attribute.String("strategy", StrategyFresh),
		attribute.String("policy_id", req.PolicyID.String()),
		attribute.String("description", req.Description.String()),
	))
	defer span.End()

	result, err := f.verifyAll(ctx, req)
	f.observe(span, StrategyFresh, start, err)
	return result, err
}

func (f *Fresh) verifyAll(ctx context.Context, req Request) (*Result, error) {
	if _, err := f.latestVersion(ctx, req.PolicyID, req.Version); err != nil {
		return nil, err
	}

	att, err := f.registry.VerifySignature(ctx, req.MsgHash, req.RefBlock, req.Material)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOracleAttestation, "inline attestation rejected")
	}
	f.logger.DebugContext(ctx, "inline attestation verified",
		"request_id", requestcontext.RequestID(ctx),
		"ref_block", req.RefBlock,
		"total_stake", att.TotalStake,
	)

	return f.prove(ctx, req, req.Commitment)
}
