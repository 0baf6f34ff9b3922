package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesto/internal/verification"
	dErrors "attesto/pkg/domain-errors"
)

// Cached verifies eligibility against the commitment already recorded in
// the verification store the policy is bound to. The subject must have
// passed through the attestation gateway beforehand.
type Cached struct {
	base
	stores *verification.Resolver
}

// NewCached constructs the cached strategy.
func NewCached(
	policies PolicyReader,
	stores *verification.Resolver,
	verifiers VerifierResolver,
	publisher AuditPublisher,
	opts ...Option,
) *Cached {
	return &Cached{
		base:   newBase(policies, verifiers, publisher, opts...),
		stores: stores,
	}
}

// VerifyAll checks the subject's proof against the stored commitment.
//
// Errors: CodeVersionMismatch (proof targets a non-current version),
// CodeSourceNotBound (policy has no source, or the bound source has no
// registered store), CodeSubjectNotVerified (no verified record),
// CodeVerifierNotBound (description disabled or verifier unregistered),
// CodeProofInvalid (proof rejected), CodeInternal (store or audit failure).
func (c *Cached) VerifyAll(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "router.VerifyAll", trace.WithAttributes(
		attribute.String("strategy", StrategyCached),
		attribute.String("policy_id", req.PolicyID.String()),
		attribute.String("description", req.Description.String()),
	))
	defer span.End()

	result, err := c.verifyAll(ctx, req)
	c.observe(span, StrategyCached, start, err)
	return result, err
}

func (c *Cached) verifyAll(ctx context.Context, req Request) (*Result, error) {
	binding, err := c.latestVersion(ctx, req.PolicyID, req.Version)
	if err != nil {
		return nil, err
	}
	if binding.Source.IsNil() {
		return nil, dErrors.New(dErrors.CodeSourceNotBound, "policy "+req.PolicyID.String()+" has no verification source")
	}
	svc, ok := c.stores.Resolve(binding.Source)
	if !ok {
		return nil, dErrors.New(dErrors.CodeSourceNotBound, "no verification store registered under "+binding.Source.String())
	}

	record, err := svc.Get(ctx, req.Subject)
	if err != nil {
		return nil, err
	}
	if !record.Verified {
		return nil, dErrors.New(dErrors.CodeSubjectNotVerified, "subject has no verified record in "+binding.Source.String())
	}

	return c.prove(ctx, req, record.Commitment)
}
