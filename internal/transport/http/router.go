// Package httptransport assembles the HTTP surface: the middleware chain,
// the public health and metrics endpoints, and the authenticated API routes.
// Handlers stay thin; authorization and business rules live in the services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attesto/internal/platform/metrics"
	"attesto/internal/platform/middleware"
	"attesto/pkg/platform/httputil"
)

// Deps carries everything the router mounts. All handlers are required;
// Metrics may be nil in tests.
type Deps struct {
	Attestations *AttestationHandler
	Eligibility  *EligibilityHandler
	Admin        *AdminHandler
	Records      *RecordsHandler

	TokenValidator middleware.JWTValidator
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
}

// NewRouter wires the middleware chain and all endpoints. Health and metrics
// stay outside authentication so probes and scrapers need no credentials.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	if deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.RequestTimeout))
	}
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.TokenValidator, deps.Logger))

		deps.Attestations.Register(r)
		deps.Eligibility.Register(r)
		deps.Admin.Register(r)
		deps.Records.Register(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
