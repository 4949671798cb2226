package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/mjones3/exception-collector/internal/core/config"
	redisclient "github.com/mjones3/exception-collector/internal/infra/redis"
	"github.com/mjones3/exception-collector/internal/infra/storage"
	"github.com/mjones3/exception-collector/internal/infra/storage/memory"
	"github.com/mjones3/exception-collector/internal/infra/storage/postgres"
	"github.com/mjones3/exception-collector/internal/lifecycle/bridge"
	"github.com/mjones3/exception-collector/internal/lifecycle/health"
	"github.com/mjones3/exception-collector/internal/lifecycle/mutation"
	"github.com/mjones3/exception-collector/internal/lifecycle/subscription"
	"github.com/mjones3/exception-collector/internal/lifecycle/validation"
)

// Collector is the main application struct wiring storage, validation, the
// mutation orchestrator, the event bridge, and the subscription layer.
type Collector struct {
	cfg           *config.AppConfig
	db            *postgres.DB
	redisClient   *redisclient.Client
	orchestrator  *mutation.Orchestrator
	bridge        *bridge.Bridge
	subscriptions *subscription.Manager
	healthServer  *health.Server
	log           *slog.Logger
	cancel        context.CancelFunc
}

// NewCollector creates a Collector with all dependencies initialized.
func NewCollector(cfg *config.AppConfig) (*Collector, error) {
	// 1. Initialize Storage
	var exceptionRepo storage.ExceptionRepository
	var attemptRepo storage.AttemptRepository
	var db *postgres.DB

	switch cfg.Storage.Backend {
	case "postgres":
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		exceptionRepo = postgres.NewExceptionRepo(db)
		attemptRepo = postgres.NewAttemptRepo(db)
		slog.Info("Using PostgreSQL storage")
	case "memory":
		store := memory.NewMemoryStorage()
		exceptionRepo = memory.NewExceptionRepo(store)
		attemptRepo = memory.NewAttemptRepo(store)
		slog.Info("Using Memory storage")
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	// 2. Validation cache
	var cache validation.Cache
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		cache = redisClient
		slog.Info("Using Redis validation cache")
	} else {
		cache = validation.NopCache{}
		slog.Info("Validation cache disabled")
	}

	// 3. Core pipeline
	validator := validation.NewValidator(exceptionRepo, attemptRepo, cache)
	eventBridge := bridge.NewBridge(cfg.Bridge, exceptionRepo, attemptRepo)
	orchestrator := mutation.NewOrchestrator(exceptionRepo, attemptRepo, validator, eventBridge, cfg.Mutation)
	subscriptions := subscription.NewManager(eventBridge)

	// 4. Health
	var dbPinger health.Pinger
	if db != nil {
		dbPinger = health.PingerFunc(db.PingContext)
	} else {
		dbPinger = health.PingerFunc(func(context.Context) error { return nil })
	}
	var cachePinger health.Pinger
	if redisClient != nil {
		cachePinger = redisClient
	}
	healthServer := health.NewServer(health.NewMonitor(dbPinger, cachePinger), cfg.Server.Port)

	return &Collector{
		cfg:           cfg,
		db:            db,
		redisClient:   redisClient,
		orchestrator:  orchestrator,
		bridge:        eventBridge,
		subscriptions: subscriptions,
		healthServer:  healthServer,
		log:           slog.Default(),
	}, nil
}

// Orchestrator exposes the mutation entry points.
func (c *Collector) Orchestrator() *mutation.Orchestrator { return c.orchestrator }

// Subscriptions exposes the subscription manager.
func (c *Collector) Subscriptions() *subscription.Manager { return c.subscriptions }

// Start starts the collector and its background components.
func (c *Collector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	go func() {
		if err := c.healthServer.Start(); err != nil {
			c.log.Error("Health server failed", "error", err)
		}
	}()

	go c.bridge.Run(ctx)

	if c.db != nil {
		c.db.StartMetricsCollector(ctx)
	}

	c.log.Info("Collector started", "port", c.cfg.Server.Port, "storage", c.cfg.Storage.Backend)
	return nil
}

// Stop stops the collector.
func (c *Collector) Stop(ctx context.Context) error {
	c.log.Info("Stopping Collector...")

	if c.cancel != nil {
		c.cancel()
	}

	c.bridge.Close()

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Warn("Failed to close database", "error", err)
		}
	}

	return c.healthServer.Stop(ctx)
}
