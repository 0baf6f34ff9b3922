package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesto/internal/router"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_eligibility.go -destination=mocks/eligibility-mocks.go -package=mocks EligibilityService

// EligibilityService checks subject eligibility for a policy at a version.
type EligibilityService interface {
	VerifyAll(ctx context.Context, req router.Request) (*router.Result, error)
}

// EligibilityHandler wires the policy verification endpoint to the
// configured routing strategy.
type EligibilityHandler struct {
	service EligibilityService
	logger  *slog.Logger
}

// NewEligibilityHandler constructs an eligibility handler.
func NewEligibilityHandler(service EligibilityService, logger *slog.Logger) *EligibilityHandler {
	return &EligibilityHandler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the verification endpoint on the router.
func (h *EligibilityHandler) Register(r chi.Router) {
	r.Post("/policies/{policyID}/verify", h.HandleVerify)
}

// HandleVerify handles POST /policies/{policyID}/verify requests. The
// subject of the check is the caller: a relying party proves eligibility
// for itself, never for someone else.
func (h *EligibilityHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller := requestcontext.Identity(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyPolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domainReq := router.Request{
		PolicyID:    policyID,
		Version:     req.ParsedVersion(),
		Description: req.ParsedDescription(),
		Subject:     caller.Subject(),
		Proof:       req.ParsedProof(),
		Commitment:  req.ParsedCommitment(),
		MsgHash:     req.ParsedMsgHash(),
		RefBlock:    req.RefBlock,
		Material:    req.ParsedMaterial(),
	}

	result, err := h.service.VerifyAll(ctx, domainReq)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy verification failed",
			"request_id", requestID,
			"policy_id", policyID,
			"subject", caller,
			"description", req.Description,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy verified",
		"request_id", requestID,
		"policy_id", policyID,
		"subject", caller,
		"verifier_ref", result.VerifierRef,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromVerifyResult(result))
}
