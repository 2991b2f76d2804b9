// Package httptransport is the thin HTTP layer over the domain
// services. Handlers decode, delegate, and encode; business rules stay
// in the services.
package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kindmesh/internal/platform/metrics"
	"kindmesh/internal/platform/middleware"
)

// Deps carries the services the router exposes.
type Deps struct {
	Identity    IdentityService
	Recipients  RecipientService
	Interaction InteractionService
	Surveys     SurveyService
	Tokens      TokenIssuer
	Validator   middleware.TokenValidator
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	HealthCheck func() bool
}

// NewRouter wires the public endpoints.
func NewRouter(deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(latency(deps.Metrics))
	}

	router.Get("/healthz", handleHealth(deps.HealthCheck))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler := &AuthHandler{identity: deps.Identity, tokens: deps.Tokens, logger: deps.Logger}
	router.Post("/auth/login", authHandler.handleLogin)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		identityHandler := &IdentityHandler{identity: deps.Identity, logger: deps.Logger}
		identityHandler.Register(r)

		recipientHandler := &RecipientHandler{recipients: deps.Recipients, logger: deps.Logger}
		recipientHandler.Register(r)

		interactionHandler := &InteractionHandler{ledger: deps.Interaction, logger: deps.Logger}
		interactionHandler.Register(r)

		surveyHandler := &SurveyHandler{surveys: deps.Surveys, logger: deps.Logger}
		surveyHandler.Register(r)
	})

	return router
}

// latency reports request duration per route pattern and status. The
// pattern is read after the handler ran, once chi has resolved it, so
// path parameters do not blow up label cardinality.
func latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder, status := middleware.StatusRecorder(w)
			next.ServeHTTP(recorder, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.WithLabelValues(route, strconv.Itoa(status())).
				Observe(time.Since(start).Seconds())
		})
	}
}

func handleHealth(check func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil && !check() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
