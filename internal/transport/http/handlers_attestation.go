package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesto/internal/attestation"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_attestation.go -destination=mocks/attestation-mocks.go -package=mocks AttestationService

// AttestationService accepts aggregate attestations for recording.
type AttestationService interface {
	Submit(ctx context.Context, req attestation.SubmitRequest) error
}

// AttestationHandler wires the attestation endpoint to the gateway.
type AttestationHandler struct {
	service AttestationService
	logger  *slog.Logger
}

// NewAttestationHandler constructs an attestation handler.
func NewAttestationHandler(service AttestationService, logger *slog.Logger) *AttestationHandler {
	return &AttestationHandler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the attestation endpoint on the router.
func (h *AttestationHandler) Register(r chi.Router) {
	r.Post("/attestations", h.HandleSubmit)
}

// HandleSubmit handles POST /attestations requests. The submitter role check
// happens inside the gateway so a denied call is audited the same way
// regardless of transport.
func (h *AttestationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitAttestationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Submit(ctx, req.Parsed()); err != nil {
		h.logger.ErrorContext(ctx, "attestation submit failed",
			"request_id", requestID,
			"source", req.Source,
			"subject", req.Subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attestation accepted",
		"request_id", requestID,
		"source", req.Source,
		"subject", req.Subject,
		"ref_block", req.RefBlock,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, &AttestationResponse{
		Status:   "recorded",
		Source:   req.Source,
		Subject:  req.Subject,
		RefBlock: req.RefBlock,
	})
}
