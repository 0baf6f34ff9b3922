package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesto/internal/guard"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

// PolicyAdmin is the owner-gated registry write surface.
type PolicyAdmin interface {
	BindVerifier(ctx context.Context, desc domain.VerifierDesc, ref domain.VerifierRef) error
	SetThreshold(ctx context.Context, desc domain.VerifierDesc, threshold domain.Threshold) error
	BindSource(ctx context.Context, policyID domain.PolicyID, source domain.SourceRef) error
	SetLatestVersion(ctx context.Context, policyID domain.PolicyID, version domain.Version) error
}

// RoleAdmin reassigns the privileged roles.
type RoleAdmin interface {
	TransferOwnership(ctx context.Context, to domain.Identity) error
	SetSubmitter(ctx context.Context, to domain.Identity) error
}

// AdminHandler wires the owner-facing registry and role endpoints. Every
// operation is authorized inside the services; the handler only parses and
// translates.
type AdminHandler struct {
	policies PolicyAdmin
	roles    RoleAdmin
	logger   *slog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(policies PolicyAdmin, roles RoleAdmin, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		policies: policies,
		roles:    roles,
		logger:   logger,
	}
}

// Register mounts the admin endpoints on the router.
func (h *AdminHandler) Register(r chi.Router) {
	r.Put("/admin/verifiers/{description}", h.HandleBindVerifier)
	r.Put("/admin/verifiers/{description}/threshold", h.HandleSetThreshold)
	r.Put("/admin/policies/{policyID}/source", h.HandleBindSource)
	r.Put("/admin/policies/{policyID}/version", h.HandleSetVersion)
	r.Post("/admin/roles/{role}", h.HandleTransferRole)
}

// HandleBindVerifier handles PUT /admin/verifiers/{description} requests.
func (h *AdminHandler) HandleBindVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	desc, err := domain.ParseVerifierDesc(chi.URLParam(r, "description"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[BindVerifierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.policies.BindVerifier(ctx, desc, req.ParsedRef()); err != nil {
		h.logger.ErrorContext(ctx, "verifier bind failed",
			"request_id", requestID,
			"description", desc,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &VerifierBindingResponse{
		Description: desc.String(),
		VerifierRef: req.ParsedRef().String(),
		Disabled:    req.ParsedRef().IsDisabled(),
	})
}

// HandleSetThreshold handles PUT /admin/verifiers/{description}/threshold
// requests.
func (h *AdminHandler) HandleSetThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	desc, err := domain.ParseVerifierDesc(chi.URLParam(r, "description"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SetThresholdRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.policies.SetThreshold(ctx, desc, domain.Threshold(req.Threshold)); err != nil {
		h.logger.ErrorContext(ctx, "threshold update failed",
			"request_id", requestID,
			"description", desc,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ThresholdResponse{
		Description: desc.String(),
		Threshold:   req.Threshold,
	})
}

// HandleBindSource handles PUT /admin/policies/{policyID}/source requests.
func (h *AdminHandler) HandleBindSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[BindSourceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.policies.BindSource(ctx, policyID, req.ParsedSource()); err != nil {
		h.logger.ErrorContext(ctx, "source bind failed",
			"request_id", requestID,
			"policy_id", policyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &PolicySourceResponse{
		PolicyID: uint64(policyID),
		Source:   req.ParsedSource().String(),
	})
}

// HandleSetVersion handles PUT /admin/policies/{policyID}/version requests.
func (h *AdminHandler) HandleSetVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SetVersionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.policies.SetLatestVersion(ctx, policyID, domain.Version(req.Version)); err != nil {
		h.logger.ErrorContext(ctx, "version update failed",
			"request_id", requestID,
			"policy_id", policyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &PolicyVersionResponse{
		PolicyID: uint64(policyID),
		Version:  req.Version,
	})
}

// HandleTransferRole handles POST /admin/roles/{role} requests. The role
// segment names the slot being reassigned, not the caller's role.
func (h *AdminHandler) HandleTransferRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role := guard.Role(chi.URLParam(r, "role"))

	req, ok := httputil.DecodeAndPrepare[TransferRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var err error
	switch role {
	case guard.RoleOwner:
		err = h.roles.TransferOwnership(ctx, req.ParsedIdentity())
	case guard.RoleSubmitter:
		err = h.roles.SetSubmitter(ctx, req.ParsedIdentity())
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown role "+string(role)))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "role transfer failed",
			"request_id", requestID,
			"role", string(role),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &RoleResponse{
		Role:   string(role),
		Holder: req.ParsedIdentity().String(),
	})
}
