package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/imaging-gateway/internal/adapters"
	"github.com/otcheredev/imaging-gateway/internal/cache"
	"github.com/otcheredev/imaging-gateway/internal/config"
	"github.com/otcheredev/imaging-gateway/internal/consent"
	"github.com/otcheredev/imaging-gateway/internal/database"
	"github.com/otcheredev/imaging-gateway/internal/federation"
	"github.com/otcheredev/imaging-gateway/internal/handlers"
	"github.com/otcheredev/imaging-gateway/internal/middleware"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/registry"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/workflow"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
	"github.com/otcheredev/imaging-gateway/pkg/idgen"
	"github.com/otcheredev/imaging-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the wired services of one gateway process
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	store      cache.Cache
	redis      *cache.RedisCache
	archives   *repository.ArchiveRepository
	audit      *repository.AuditRepository
	registry   *registry.Registry
	adapters   *adapters.AdapterFactory
	federation *federation.Service
	workflow   *workflow.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(databaseConfig(cfg))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}

	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, err
	}
	if err := a.initCache(); err != nil {
		database.Close(db)
		return nil, err
	}

	a.archives = repository.NewArchiveRepository(db)
	a.audit = repository.NewAuditRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)

	a.registry = registry.New(cfg.Federation.PrimaryArchiveID, a.archives, logger.Get())
	if err := a.registry.Reload(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load archive registry: %w", err)
	}

	opts := adapters.DICOMWebOptions{
		Timeout:  cfg.Federation.ArchiveTimeout,
		RetryMax: cfg.Federation.ArchiveRetryMax,
	}
	a.adapters = adapters.NewAdapterFactory(func(archive models.ArchiveServer) (adapters.ArchiveAdapter, error) {
		return adapters.NewAdapter(archive, opts)
	})

	clk := clock.New()
	ids := idgen.NewUUID()
	ledger := consent.NewLedger(accessRepo, ids, clk, cfg.Federation.ConsentTTLDays, logger.Get())

	deps := federation.Deps{
		Registry: a.registry,
		Adapters: a.adapters,
		Access:   ledger,
		Sessions: cache.NewSessionStore(a.store, clk),
		Audit:    a.audit,
		Statuses: a.archives,
		IDs:      ids,
		Clock:    clk,
		Logger:   logger.Get(),
	}
	if cfg.Cache.Enabled {
		deps.Cache = a.store
	}
	a.federation = federation.NewService(deps, federation.Options{
		ArchiveTimeout: cfg.Federation.ArchiveTimeout,
		SessionTTL:     cfg.Federation.SessionTTL,
		StudyCacheTTL:  cfg.Cache.StudyTTL,
	})

	a.workflow = workflow.NewService(workflowRepo, a.federation, ledger, a.audit, ids, clk, logger.Get())

	log.Info().
		Int("archives", len(a.registry.List())).
		Str("primary", a.registry.PrimaryID()).
		Msg("Gateway services initialized")
	return a, nil
}

// initCache picks the backing store for sessions and, when enabled, study
// details. Sessions always need a store, so memory is the fallback.
func (a *app) initCache() error {
	if a.cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port)
		rc, err := cache.NewRedisCache(cache.RedisOptions{
			Addr:     addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.store, a.redis = rc, rc
		log.Info().Str("addr", addr).Msg("Redis cache initialized")
		return nil
	}

	a.store = cache.NewMemoryCache()
	log.Info().Bool("study_cache", a.cfg.Cache.Enabled).Msg("Memory cache initialized")
	return nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORS.AllowedOrigins,
		AllowedMethods:   a.cfg.CORS.AllowedMethods,
		AllowedHeaders:   a.cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(a.checks())
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	if a.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CallerIDFromHeader)

		handlers.NewStudyHandler(a.federation).Register(r)
		handlers.NewWorkflowHandler(a.workflow).Register(r)
		handlers.NewManagementHandler(a.archives, a.registry, a.federation).Register(r)
		handlers.NewAuditHandler(a.audit).Register(r)
	})

	return r
}

func (a *app) checks() map[string]handlers.Checker {
	checks := map[string]handlers.Checker{
		"database": func(ctx context.Context) error {
			return database.Ping(a.db)
		},
	}
	if a.redis != nil {
		checks["cache"] = a.redis.Ping
	}
	return checks
}

func (a *app) close() {
	if a.adapters != nil {
		if err := a.adapters.CloseAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to close archive adapters")
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

// shutdownTimeout falls back to 30s when unset
func (a *app) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
