package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taxbridge/internal/audit"
	"taxbridge/internal/coordinator"
	coordmetrics "taxbridge/internal/coordinator/metrics"
	entitymetrics "taxbridge/internal/entity/metrics"
	entityservice "taxbridge/internal/entity/service"
	"taxbridge/internal/entity/store/organization"
	eventstore "taxbridge/internal/event/store"
	"taxbridge/internal/idempotency"
	"taxbridge/internal/opauth"
	"taxbridge/internal/platform/config"
	"taxbridge/internal/platform/httpserver"
	"taxbridge/internal/platform/logger"
	"taxbridge/internal/platform/postgres"
	"taxbridge/internal/platform/redis"
	"taxbridge/internal/producers"
	"taxbridge/internal/reconcile"
	reconcilemetrics "taxbridge/internal/reconcile/metrics"
	registrymetrics "taxbridge/internal/registry/metrics"
	registryservice "taxbridge/internal/registry/service"
	"taxbridge/internal/registry/store/artifact"
	httptransport "taxbridge/internal/transport/http"
)

// eventSource is the full surface taxbridge needs from the source-of-truth
// adapter: read events, write outcome annotations.
type eventSource interface {
	eventstore.EventStore
	eventstore.Annotator
}

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise (development).
	var (
		db            *sql.DB
		events        eventSource
		artifactStore artifact.Store
		orgStore      organization.Store
		auditStore    audit.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal(log, "connect postgres", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			fatal(log, "run migrations", err)
		}
		events = eventstore.NewPostgres(db)
		artifactStore = artifact.NewPostgres(db)
		orgStore = organization.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		events = eventstore.NewInMemoryEventStore()
		artifactStore = artifact.NewInMemoryStore()
		orgStore = organization.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_URL not set, attempt idempotency cache disabled")
	}

	catalog, err := producers.Load(cfg.ProducerConfigPath)
	if err != nil {
		fatal(log, "load producer catalog", err)
	}
	prods := producers.FromConfig(catalog)

	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithLogger(log),
	)
	defer publisher.Close()

	resolver, err := entityservice.New(orgStore,
		entityservice.WithLogger(log),
		entityservice.WithMetrics(entitymetrics.New()),
	)
	if err != nil {
		fatal(log, "build resolver", err)
	}

	registry, err := registryservice.New(artifactStore,
		registryservice.WithPendingTTL(cfg.PendingTTL),
		registryservice.WithAudit(publisher),
		registryservice.WithLogger(log),
		registryservice.WithMetrics(registrymetrics.New()),
	)
	if err != nil {
		fatal(log, "build registry", err)
	}

	coordOpts := []coordinator.Option{
		coordinator.WithAnnotator(events),
		coordinator.WithLogger(log),
		coordinator.WithMetrics(coordmetrics.New()),
	}
	if redisClient != nil {
		cache := idempotency.New(redisClient, cfg.AttemptCacheTTL)
		coordOpts = append(coordOpts, coordinator.WithIdempotencyCache(cache))
	}
	coord, err := coordinator.New(events, resolver, registry, prods, coordOpts...)
	if err != nil {
		fatal(log, "build coordinator", err)
	}

	reports := reconcile.NewMemorySink()
	sinks := reconcile.MultiSink{reports}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := reconcile.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			fatal(log, "connect kafka", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	engine, err := reconcile.New(events, artifactStore,
		reconcile.WithGracePeriod(cfg.InFlightGrace),
		reconcile.WithAmountTolerance(cfg.AmountTolerance),
		reconcile.WithSink(sinks),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(reconcilemetrics.New()),
	)
	if err != nil {
		fatal(log, "build reconciliation engine", err)
	}

	tokens := opauth.NewJWTService(cfg.AdminJWTSigningKey, "taxbridge")
	if cfg.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, token issuance endpoint is unusable")
	}

	var checkers []httptransport.HealthChecker
	if db != nil {
		checkers = append(checkers, httptransport.HealthChecker{
			Name:  "postgres",
			Check: db.PingContext,
		})
	}
	if redisClient != nil {
		checkers = append(checkers, httptransport.HealthChecker{
			Name:  "redis",
			Check: redisClient.Health,
		})
	}

	handler := httptransport.NewHandler(
		coord,
		registry,
		orgStore,
		auditStore,
		engine,
		reports,
		tokens,
		log,
		httptransport.WithHealthCheckers(checkers...),
	)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		JWTValidator:   opauth.NewJWTServiceAdapter(tokens),
		AdminTokenHash: cfg.AdminTokenHash,
	})

	if cfg.ReconcileInterval > 0 {
		go reconcileLoop(ctx, log, engine, cfg.ReconcileInterval, cfg.ReconcileWindow)
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting taxbridge", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

// reconcileLoop runs scheduled sweeps over a sliding window until the context
// is cancelled.
func reconcileLoop(ctx context.Context, log *slog.Logger, engine *reconcile.Engine, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			report, err := engine.Run(ctx, reconcile.Window{From: now.Add(-window), To: now})
			if err != nil {
				log.Error("scheduled reconciliation failed", "error", err)
				continue
			}
			log.Info("scheduled reconciliation finished",
				"events_scanned", report.Summary.EventsScanned,
				"findings", len(report.Findings),
			)
		}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
