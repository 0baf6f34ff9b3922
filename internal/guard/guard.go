// Package guard enforces the two privileged roles: the owner, who manages
// policy bindings and role assignments, and the attestation submitter, who
// alone may record verification attestations.
//
// Checks read the caller principal from the request context and run
// synchronously at operation entry. A failed check leaves all state
// untouched.
package guard

import (
	"context"
	"log/slog"
	"sync"

	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

// Role names a privileged principal slot.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleSubmitter Role = "attestation_submitter"
)

// Guard holds the current role assignments. Reads take the read lock so
// concurrent checks never block each other; transfers are rare and take the
// write lock.
type Guard struct {
	mu        sync.RWMutex
	owner     domain.Identity
	submitter domain.Identity
	logger    *slog.Logger
}

// Option configures optional dependencies.
type Option func(*Guard)

// WithLogger attaches a structured logger for denial and transfer logging.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New constructs a Guard with the initial role holders. The owner is
// required; the submitter may start unset, in which case no attestation can
// be recorded until the owner assigns one.
func New(owner, submitter domain.Identity, opts ...Option) (*Guard, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}
	g := &Guard{
		owner:     owner,
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RequireOwner checks that the caller in ctx holds the owner role.
//
// Errors: CodeUnauthorized when no caller identity is present or the caller
// is not the owner.
func (g *Guard) RequireOwner(ctx context.Context) error {
	return g.require(ctx, RoleOwner)
}

// RequireSubmitter checks that the caller in ctx holds the submitter role.
//
// Errors: CodeUnauthorized when no caller identity is present or the caller
// is not the attestation submitter.
func (g *Guard) RequireSubmitter(ctx context.Context) error {
	return g.require(ctx, RoleSubmitter)
}

func (g *Guard) require(ctx context.Context, role Role) error {
	caller := requestcontext.Identity(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "no caller identity in context")
	}

	g.mu.RLock()
	holder := g.owner
	if role == RoleSubmitter {
		holder = g.submitter
	}
	g.mu.RUnlock()

	if holder.IsNil() || caller != holder {
		g.logger.WarnContext(ctx, "role check denied",
			"request_id", requestcontext.RequestID(ctx),
			"caller", caller.String(),
			"role", string(role),
		)
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not hold the "+string(role)+" role")
	}
	return nil
}

// Owner returns the current owner principal.
func (g *Guard) Owner() domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// Submitter returns the current attestation submitter principal.
func (g *Guard) Submitter() domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.submitter
}

// TransferOwnership hands the owner role to another principal. Owner-gated;
// there is no renounce, so the target must be non-empty.
//
// Errors: CodeUnauthorized when the caller is not the owner,
// CodeInvalidInput when the target identity is empty.
func (g *Guard) TransferOwnership(ctx context.Context, to domain.Identity) error {
	if err := g.RequireOwner(ctx); err != nil {
		return err
	}
	if to.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "new owner identity cannot be empty")
	}

	g.mu.Lock()
	prev := g.owner
	g.owner = to
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "ownership transferred",
		"request_id", requestcontext.RequestID(ctx),
		"previous_owner", prev.String(),
		"new_owner", to.String(),
	)
	return nil
}

// SetSubmitter assigns the attestation submitter role. Owner-gated; the
// target must be non-empty so the submitter slot cannot be silently cleared.
//
// Errors: CodeUnauthorized when the caller is not the owner,
// CodeInvalidInput when the target identity is empty.
func (g *Guard) SetSubmitter(ctx context.Context, to domain.Identity) error {
	if err := g.RequireOwner(ctx); err != nil {
		return err
	}
	if to.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "new submitter identity cannot be empty")
	}

	g.mu.Lock()
	prev := g.submitter
	g.submitter = to
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "submitter role assigned",
		"request_id", requestcontext.RequestID(ctx),
		"previous_submitter", prev.String(),
		"new_submitter", to.String(),
	)
	return nil
}
