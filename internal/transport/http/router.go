// Package httptransport is the thin HTTP layer. Handlers delegate to the
// coordinator, registry and reconciliation services; no business logic lives
// here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxbridge/internal/platform/middleware"
	adminmw "taxbridge/pkg/platform/middleware/admin"
	authmw "taxbridge/pkg/platform/middleware/auth"
	request "taxbridge/pkg/platform/middleware/request"
	"taxbridge/pkg/platform/middleware/requesttime"
)

// RouterConfig carries everything the router needs beyond the handler.
type RouterConfig struct {
	Logger         *slog.Logger
	JWTValidator   authmw.JWTValidator
	AdminTokenHash string
}

// NewRouter wires all endpoints. Operator endpoints require a bearer token;
// repair, cancel and token issuance additionally require the admin role or
// the break-glass admin token.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Break-glass: issue operator tokens with the static admin token.
	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(adminmw.RequireAdminToken(cfg.AdminTokenHash, cfg.Logger))
		r.Post("/token", h.handleIssueToken)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(authmw.RequireAuth(cfg.JWTValidator, cfg.Logger))

		r.Route("/events/{docType}/{docID}", func(r chi.Router) {
			r.Get("/audit", h.handleAuditTrail)
			r.Route("/artifacts/{kind}", func(r chi.Router) {
				r.Post("/attempt", h.handleAttempt)
				r.Get("/", h.handleLookup)
				r.Get("/history", h.handleHistory)

				r.Group(func(r chi.Router) {
					r.Use(authmw.RequireRole("admin", cfg.Logger))
					r.Post("/cancel", h.handleCancel)
					r.Post("/repair", h.handleRepair)
				})
			})
		})

		r.Get("/organizations", h.handleListOrganizations)
		r.Get("/organizations/{registryNumber}", h.handleGetOrganization)

		r.Route("/reconcile", func(r chi.Router) {
			r.Get("/latest", h.handleLatestReport)
			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole("admin", cfg.Logger))
				r.Post("/run", h.handleRunReconciliation)
			})
		})
	})

	return r
}
