// Package http assembles the service's HTTP surface.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycgate/internal/audit"
	kychandler "kycgate/internal/kyc/handler"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/webhook"
	"kycgate/pkg/platform/middleware"
)

// HealthChecker reports the readiness of one backing dependency.
type HealthChecker func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	KYC       *kychandler.Handler
	Audit     *audit.Handler
	Webhook   *webhook.Handler
	Validator *middleware.TokenValidator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Health    map[string]HealthChecker
}

// New builds the router. Webhook callbacks authenticate with signatures, not
// bearer tokens, so they sit outside the auth groups.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger, deps.Metrics))

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/kyc/webhook/{provider}", deps.Webhook.ServeCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		r.Post("/kyc/submit", deps.KYC.Submit)
		r.Get("/kyc/status", deps.KYC.Status)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireKYCApprover(deps.Validator, deps.Logger))
		r.Post("/admin/kyc/override", deps.KYC.Override)
		r.Get("/admin/kyc/statistics", deps.KYC.Statistics)
		r.Get("/admin/kyc/export", deps.KYC.Export)
		r.Get("/admin/kyc/reviews/{userID}", deps.KYC.Reviews)
		r.Get("/admin/kyc/report", deps.Audit.Report)
		r.Get("/admin/kyc/trail/{userID}", deps.Audit.Trail)
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
