package httptransport

import (
	"context"
	"log/slog"

	"taxbridge/internal/audit"
	"taxbridge/internal/opauth"
	"taxbridge/internal/reconcile"
)

// Reconciler runs on-demand sweeps.
type Reconciler interface {
	Run(ctx context.Context, window reconcile.Window) (*reconcile.Report, error)
}

// Handler bundles the services behind the HTTP API.
type Handler struct {
	artifacts     ArtifactService
	registry      RegistryReader
	organizations OrganizationReader
	auditStore    audit.Store
	reconciler    Reconciler
	reports       *reconcile.MemorySink
	tokens        *opauth.JWTService
	health        []HealthChecker
	logger        *slog.Logger
}

// HealthChecker is a named dependency probe for the health endpoint.
type HealthChecker struct {
	Name  string
	Check func(ctx context.Context) error
}

type HandlerOption func(*Handler)

// WithHealthCheckers adds dependency probes to /healthz.
func WithHealthCheckers(checkers ...HealthChecker) HandlerOption {
	return func(h *Handler) {
		h.health = append(h.health, checkers...)
	}
}

func NewHandler(
	artifacts ArtifactService,
	registry RegistryReader,
	organizations OrganizationReader,
	auditStore audit.Store,
	reconciler Reconciler,
	reports *reconcile.MemorySink,
	tokens *opauth.JWTService,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		artifacts:     artifacts,
		registry:      registry,
		organizations: organizations,
		auditStore:    auditStore,
		reconciler:    reconciler,
		reports:       reports,
		tokens:        tokens,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
