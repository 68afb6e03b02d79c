package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tessera/internal/platform/metrics"
	"tessera/internal/platform/middleware"
	"tessera/pkg/domain"
	"tessera/pkg/platform/httputil"
)

type publicRoutes interface{ Register(chi.Router) }
type managerRoutes interface{ RegisterManager(chi.Router) }
type adminRoutes interface{ RegisterAdmin(chi.Router) }

// HealthCheck probes one dependency for the readiness endpoint.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router needs. Each module handler implements
// whichever of Register, RegisterManager and RegisterAdmin it serves.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      middleware.JWTValidator
	AdminTokenHash string
	Operator       domain.PartyID
	Checks         map[string]HealthCheck
	// RateLimit, when set, wraps the bearer routes after authentication.
	RateLimit func(http.Handler) http.Handler
	Modules   []any
}

// NewRouter builds the chi router: unauthenticated probes and metrics,
// bearer-token routes for investors and managers, and admin-token routes for
// the platform operator.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Checks, d.Logger))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}
		for _, m := range d.Modules {
			if p, ok := m.(publicRoutes); ok {
				p.Register(r)
			}
			if p, ok := m.(managerRoutes); ok {
				p.RegisterManager(r)
			}
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(d.AdminTokenHash, d.Operator, d.Logger))
		for _, m := range d.Modules {
			if p, ok := m.(adminRoutes); ok {
				p.RegisterAdmin(r)
			}
		}
	})
	return r
}

func readiness(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "dependency", name, "error", err)
				report[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
