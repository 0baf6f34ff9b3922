package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesto/internal/audit"
	"attesto/internal/verification"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

// SourceResolver resolves a source ref to its verification service.
type SourceResolver interface {
	Resolve(ref domain.SourceRef) (*verification.Service, bool)
}

// AuditReader lists recorded audit events for a subject.
type AuditReader interface {
	List(ctx context.Context, subject domain.SubjectID) ([]audit.Event, error)
}

// RecordsHandler serves the open read surface: verification records and the
// audit trail. No role is required beyond an authenticated caller.
type RecordsHandler struct {
	sources SourceResolver
	audit   AuditReader
	logger  *slog.Logger
}

// NewRecordsHandler constructs a records handler.
func NewRecordsHandler(sources SourceResolver, audit AuditReader, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		sources: sources,
		audit:   audit,
		logger:  logger,
	}
}

// Register mounts the read endpoints on the router.
func (h *RecordsHandler) Register(r chi.Router) {
	r.Get("/subjects/{subject}/verification", h.HandleGetVerification)
	r.Get("/audit/events", h.HandleListAuditEvents)
}

// HandleGetVerification handles GET /subjects/{subject}/verification
// requests. The source query parameter names the verification store to read;
// a subject the store has never seen reads as the zero record.
func (h *RecordsHandler) HandleGetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subject, err := domain.ParseSubjectID(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rawSource := r.URL.Query().Get("source")
	if rawSource == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "source query parameter is required"))
		return
	}
	source, err := domain.ParseSourceRef(rawSource)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	svc, ok := h.sources.Resolve(source)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeSourceNotBound, "no verification store registered under "+source.String()))
		return
	}

	record, err := svc.Get(ctx, subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification record read failed",
			"request_id", requestID,
			"source", source,
			"subject", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubjectRecord(source.String(), record))
}

// HandleListAuditEvents handles GET /audit/events requests filtered by the
// subject query parameter, most recent first.
func (h *RecordsHandler) HandleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subject, err := domain.ParseSubjectID(r.URL.Query().Get("subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.audit.List(ctx, subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit event list failed",
			"request_id", requestID,
			"subject", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromAuditEvents(events))
}
