// Package policy maintains the registry that routes eligibility checks:
// which trust source a policy reads from, which policy version proofs must
// target, which verifier backs a proof description, and the numeric
// threshold fed to that verifier.
//
// The four bindings are independent. Each write touches exactly one of
// them, so operators can stage a verifier before publishing a version, or
// retire a verifier without disturbing the policy it served.
package policy

import (
	"context"
	"errors"
	"log/slog"

	"attesto/internal/audit"
	"attesto/internal/policy/models"
	"attesto/pkg/attrs"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// Store persists the binding maps.
type Store interface {
	SetPolicySource(ctx context.Context, policyID domain.PolicyID, source domain.SourceRef) error
	SetPolicyVersion(ctx context.Context, policyID domain.PolicyID, version domain.Version) error
	GetPolicyBinding(ctx context.Context, policyID domain.PolicyID) (models.Binding, error)
	SetVerifierRef(ctx context.Context, desc domain.VerifierDesc, ref domain.VerifierRef) error
	SetVerifierThreshold(ctx context.Context, desc domain.VerifierDesc, threshold domain.Threshold) error
	GetVerifierBinding(ctx context.Context, desc domain.VerifierDesc) (models.VerifierBinding, error)
}

// Authorizer gates registry writes to the owner.
type Authorizer interface {
	RequireOwner(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service orchestrates registry reads and owner-gated writes.
type Service struct {
	store          Store
	authorizer     Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, authorizer Authorizer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		authorizer: authorizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindSource points a policy at the trust source whose records it reads.
// Rebinding is allowed at any time and takes effect on the next check.
//
// Errors: CodeUnauthorized when the caller is not the owner.
func (s *Service) BindSource(ctx context.Context, policyID domain.PolicyID, source domain.SourceRef) error {
	if err := s.authorizer.RequireOwner(ctx); err != nil {
		return err
	}
	if err := s.store.SetPolicySource(ctx, policyID, source); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind policy source")
	}
	s.logAudit(ctx, string(audit.ActionPolicySourceBound),
		"policy_id", policyID,
		"source", source,
		"actor", requestcontext.Identity(ctx),
	)
	return nil
}

// SetLatestVersion publishes the version that incoming proofs must target.
//
// Errors: CodeUnauthorized when the caller is not the owner.
func (s *Service) SetLatestVersion(ctx context.Context, policyID domain.PolicyID, version domain.Version) error {
	if err := s.authorizer.RequireOwner(ctx); err != nil {
		return err
	}
	if err := s.store.SetPolicyVersion(ctx, policyID, version); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set policy version")
	}
	s.logAudit(ctx, string(audit.ActionPolicyVersionSet),
		"policy_id", policyID,
		"version", version,
		"actor", requestcontext.Identity(ctx),
	)
	return nil
}

// BindVerifier points a proof description at a verifier. An empty ref is an
// explicit off switch: checks against the description fail until a new
// verifier is bound.
//
// Errors: CodeUnauthorized when the caller is not the owner.
func (s *Service) BindVerifier(ctx context.Context, desc domain.VerifierDesc, ref domain.VerifierRef) error {
	if err := s.authorizer.RequireOwner(ctx); err != nil {
		return err
	}
	if err := s.store.SetVerifierRef(ctx, desc, ref); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind verifier")
	}
	s.logAudit(ctx, string(audit.ActionVerifierBound),
		"description", desc,
		"verifier_ref", ref,
		"disabled", ref.IsDisabled(),
		"actor", requestcontext.Identity(ctx),
	)
	return nil
}

// SetThreshold sets the numeric bound passed to the verifier for a
// description. The value is opaque to the registry; zero is a legitimate
// bound, not an unset marker.
//
// Errors: CodeUnauthorized when the caller is not the owner.
func (s *Service) SetThreshold(ctx context.Context, desc domain.VerifierDesc, threshold domain.Threshold) error {
	if err := s.authorizer.RequireOwner(ctx); err != nil {
		return err
	}
	if err := s.store.SetVerifierThreshold(ctx, desc, threshold); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set verifier threshold")
	}
	s.logAudit(ctx, string(audit.ActionVerifierThresholdSet),
		"description", desc,
		"threshold", threshold,
		"actor", requestcontext.Identity(ctx),
	)
	return nil
}

// Binding returns a policy's source and latest version. Policies that were
// never configured read as the zero binding; callers decide whether an
// unset field is an error.
func (s *Service) Binding(ctx context.Context, policyID domain.PolicyID) (models.Binding, error) {
	binding, err := s.store.GetPolicyBinding(ctx, policyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Binding{}, nil
	}
	if err != nil {
		return models.Binding{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy binding")
	}
	return binding, nil
}

// VerifierBinding returns the verifier and threshold bound to a
// description. Descriptions that were never configured read as the zero
// binding, which routes as "no verifier".
func (s *Service) VerifierBinding(ctx context.Context, desc domain.VerifierDesc) (models.VerifierBinding, error) {
	binding, err := s.store.GetVerifierBinding(ctx, desc)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.VerifierBinding{}, nil
	}
	if err != nil {
		return models.VerifierBinding{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verifier binding")
	}
	return binding, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	subject := attrs.ExtractStringer(attributes, "policy_id")
	if subject == "" {
		subject = attrs.ExtractStringer(attributes, "description")
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:  event,
		Actor:   attrs.ExtractStringer(attributes, "actor"),
		Subject: subject,
	})
}
