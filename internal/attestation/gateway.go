// Package attestation is the single write path into verification stores.
//
// A submission carries an aggregate oracle attestation over a message hash.
// The gateway checks the submitter role, lets the quorum registry verify the
// attestation, records the subject under the target store's manager identity
// and emits the attestation_recorded audit event. The record write and the
// event land together or not at all: when the emit fails the previous record
// is restored before the call returns.
package attestation

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesto/internal/attestation/metrics"
	"attesto/internal/audit"
	"attesto/internal/quorum"
	"attesto/internal/verification"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

var tracer = otel.Tracer("attesto/internal/attestation")

// SubmitRequest carries one aggregate attestation. MsgHash is the digest the
// operators signed; Material is opaque here and interpreted by the quorum
// registry. Neither outlives the call.
type SubmitRequest struct {
	Source     domain.SourceRef
	Subject    domain.SubjectID
	Commitment domain.Commitment
	MsgHash    [32]byte
	RefBlock   uint64
	Material   quorum.Material
}

// Authorizer gates submissions to the attestation submitter role.
type Authorizer interface {
	RequireSubmitter(ctx context.Context) error
}

// AuditPublisher records submission outcomes. Emission is part of the
// submit contract, not best-effort.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Gateway coordinates quorum verification, the store write and the audit
// event for one submission.
type Gateway struct {
	identity   domain.Identity
	registry   quorum.Registry
	resolver   *verification.Resolver
	authorizer Authorizer
	publisher  AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures optional dependencies.
type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway constructs the gateway. identity is the manager principal the
// gateway presents to verification stores; every store it writes to must be
// configured with the same manager.
func NewGateway(
	identity domain.Identity,
	registry quorum.Registry,
	resolver *verification.Resolver,
	authorizer Authorizer,
	publisher AuditPublisher,
	opts ...Option,
) (*Gateway, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gateway manager identity is required")
	}
	g := &Gateway{
		identity:   identity,
		registry:   registry,
		resolver:   resolver,
		authorizer: authorizer,
		publisher:  publisher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Submit records one verified subject. The pipeline is submitter role check,
// aggregate signature verification, store resolution, record write, audit
// emission. Any rejection leaves the store unchanged.
//
// Errors: CodeUnauthorized (caller lacks the submitter role),
// CodeInvalidSignature (quorum registry rejected the attestation),
// CodeSourceNotBound (no store registered under req.Source), CodeInternal
// (store or audit failure, record rolled back), CodeInvariantViolation
// (audit failed and the rollback also failed; the store and the audit trail
// disagree and need operator attention).
func (g *Gateway) Submit(ctx context.Context, req SubmitRequest) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "attestation.Submit", trace.WithAttributes(
		attribute.String("source", req.Source.String()),
		attribute.String("subject", req.Subject.String()),
	))
	defer span.End()

	err := g.submit(ctx, req)

	outcome := "recorded"
	if err != nil {
		outcome = string(dErrors.GetCode(err))
		span.RecordError(err)
	}
	g.metrics.IncrementSubmission(outcome)
	g.metrics.ObserveSubmitLatency(time.Since(start))
	return err
}

func (g *Gateway) submit(ctx context.Context, req SubmitRequest) error {
	if err := g.authorizer.RequireSubmitter(ctx); err != nil {
		return err
	}

	att, err := g.registry.VerifySignature(ctx, req.MsgHash, req.RefBlock, req.Material)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidSignature, "aggregate attestation rejected")
	}

	svc, ok := g.resolver.Resolve(req.Source)
	if !ok {
		return dErrors.New(dErrors.CodeSourceNotBound, "no verification store registered under "+req.Source.String())
	}

	// The snapshot is what Restore puts back if the audit emit fails; for a
	// first-time subject that is the zero record.
	prev, err := svc.Get(ctx, req.Subject)
	if err != nil {
		return err
	}

	mgrCtx := requestcontext.WithIdentity(ctx, g.identity)
	if err := svc.Record(mgrCtx, req.Subject, req.Commitment); err != nil {
		return err
	}

	event := audit.Event{
		Action:        string(audit.ActionAttestationRecorded),
		Actor:         requestcontext.Identity(ctx).String(),
		Subject:       req.Subject.String(),
		Source:        req.Source.String(),
		Commitment:    req.Commitment.String(),
		TotalStake:    att.TotalStake,
		SignerSetHash: hex.EncodeToString(att.SignerSetHash[:]),
	}
	if emitErr := g.publisher.Emit(ctx, event); emitErr != nil {
		g.metrics.IncrementRollbacks()
		if restoreErr := svc.Restore(mgrCtx, prev); restoreErr != nil {
			g.logger.ErrorContext(ctx, "attestation rollback failed",
				"request_id", requestcontext.RequestID(ctx),
				"source", req.Source.String(),
				"subject", req.Subject.String(),
				"error", restoreErr,
			)
			return dErrors.Wrap(emitErr, dErrors.CodeInvariantViolation, "audit emit failed and record rollback failed")
		}
		return dErrors.Wrap(emitErr, dErrors.CodeInternal, "audit emit failed, attestation rolled back")
	}

	g.logger.InfoContext(ctx, "attestation recorded",
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
		"source", req.Source.String(),
		"subject", req.Subject.String(),
		"ref_block", req.RefBlock,
		"total_stake", att.TotalStake,
	)
	return nil
}
