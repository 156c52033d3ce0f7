// internal/app/core.go
package app

import (
	"context"
	"fmt"

	"smartdeals-service/internal/config"
	"smartdeals-service/internal/db"
	"smartdeals-service/internal/jobs"
	"smartdeals-service/internal/pkg/clock"
	"smartdeals-service/internal/pkg/events"
	"smartdeals-service/internal/pkg/history"
	"smartdeals-service/internal/pkg/lock"
	"smartdeals-service/internal/repository/postgres"
	campaignUsecase "smartdeals-service/internal/service/campaign"
	occurrenceUsecase "smartdeals-service/internal/service/occurrence"
	schedulerUsecase "smartdeals-service/internal/service/scheduler"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Core wires the campaign services against their stores. Both the API server
// and the worker build one; they differ only in what they run on top of it.
type Core struct {
	Cfg    config.AppConfig
	Logger *zap.Logger

	Pool        *pgxpool.Pool
	RedisClient *redis.Client

	Bus        *events.Bus
	JobsClient *jobs.Client

	Manager        *campaignUsecase.Manager
	EventScheduler *schedulerUsecase.EventScheduler
	Occurrences    *occurrenceUsecase.Service
	Materializer   *occurrenceUsecase.Materializer
}

// BuildCore connects the stores and assembles the service graph.
func BuildCore(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Core, error) {
	pool, err := db.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{cfg.RedisAddr},
		Password:  cfg.RedisPass,
		DB:        cfg.RedisDB,
		PoolSize:  10,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	clk := clock.System()
	bus := events.NewBus(logger)
	jobsClient := jobs.NewClient(cfg.RedisAddr, cfg.RedisPass, logger)

	campaignRepo := postgres.NewCampaignRepository(pool)
	occurrenceRepo := postgres.NewOccurrenceRepository(pool)
	selector := postgres.NewProductSelector(pool)

	stateManager := campaignUsecase.NewStateManager(jobsClient, bus, clk, logger)
	locker := lock.NewLocker(redisClient)
	expiry := history.NewExpiryHistory(redisClient)

	manager := campaignUsecase.NewManager(campaignRepo, stateManager, locker, expiry, bus, clk, logger)
	manager.SetLockTTL(cfg.ReconcileLockTTL)

	occurrences := occurrenceUsecase.NewService(occurrenceRepo, clk, logger)
	manager.SetOccurrenceRegenerator(occurrences)

	eventScheduler := schedulerUsecase.NewEventScheduler(campaignRepo, stateManager, jobsClient, bus, clk, logger)
	manager.SetEventScheduler(eventScheduler)

	compiler := campaignUsecase.NewCompiler(campaignRepo, selector, clk, logger)
	compiler.Subscribe(bus)

	materializer := occurrenceUsecase.NewMaterializer(
		occurrences, manager, cfg.MaterializeLook, cfg.MaterializeBatch, logger)

	return &Core{
		Cfg:            cfg,
		Logger:         logger,
		Pool:           pool,
		RedisClient:    redisClient,
		Bus:            bus,
		JobsClient:     jobsClient,
		Manager:        manager,
		EventScheduler: eventScheduler,
		Occurrences:    occurrences,
		Materializer:   materializer,
	}, nil
}

// Close releases the core's connections.
func (c *Core) Close() {
	if err := c.JobsClient.Close(); err != nil {
		c.Logger.Warn("failed to close jobs client", zap.Error(err))
	}
	if err := c.RedisClient.Close(); err != nil {
		c.Logger.Warn("failed to close redis client", zap.Error(err))
	}
	c.Pool.Close()
}
