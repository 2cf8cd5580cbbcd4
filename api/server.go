/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Metrics:    Prometheus latency histogram per route

ROUTE GROUPS:
  /api/accounts/*     Accounts, balances, history, reconciliation
  /api/purchases/*    Partner coin purchases (payment orders)
  /api/schemes/*      Reward scheme management
  /api/rewards/*      Reward grants (direct and OTP-gated)
  /api/catalog/*      Reward catalog
  /api/redemptions/*  Redemption workflow
  /metrics            Prometheus scrape endpoint
  /healthz            Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(metricsMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/reconcile", h.ReconcileAccount)
			r.Post("/{id}/activate", h.ActivateAccount)
			r.Post("/{id}/deactivate", h.DeactivateAccount)
		})

		// Purchase routes
		r.Route("/purchases", func(r chi.Router) {
			r.Post("/orders", h.CreateOrder)
			r.Post("/verify", h.VerifyPurchase)
		})

		// Scheme routes
		r.Route("/schemes", func(r chi.Router) {
			r.Get("/", h.ListSchemes)
			r.Post("/", h.CreateScheme)
			r.Get("/{id}", h.GetScheme)
			r.Put("/{id}", h.UpdateScheme)
			r.Delete("/{id}", h.DeleteScheme)
			r.Post("/{id}/activate", h.ActivateScheme)
			r.Post("/{id}/deactivate", h.DeactivateScheme)
		})

		// Reward routes
		r.Route("/rewards", func(r chi.Router) {
			r.Post("/", h.RewardMember)
			r.Post("/begin", h.BeginReward)
			r.Post("/confirm", h.ConfirmReward)
		})

		// Catalog routes
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.ListCatalog)
			r.Post("/", h.CreateRewardItem)
			r.Get("/{id}", h.GetRewardItem)
			r.Delete("/{id}", h.DeleteRewardItem)
		})

		// Redemption routes
		r.Route("/redemptions", func(r chi.Router) {
			r.Post("/", h.CreateRedemption)
			r.Get("/", h.ListRedemptions)
			r.Get("/{id}", h.GetRedemption)
			r.Post("/{id}/resolve", h.ResolveRedemption)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// metricsMiddleware records request latency against the chi route pattern
// so path parameters don't explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
