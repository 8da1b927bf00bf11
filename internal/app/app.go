// Package app wires the stock services shared by the API server and the
// queue worker.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"kardex/internal/domain/audit"
	"kardex/internal/domain/catalogs/warehouse"
	"kardex/internal/domain/posting"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
	"kardex/internal/infrastructure/lock"
	"kardex/internal/infrastructure/storage/postgres"
	"kardex/internal/infrastructure/storage/postgres/catalog_repo"
	"kardex/internal/infrastructure/storage/postgres/register_repo"
	"kardex/pkg/config"
	"kardex/pkg/logger"
	"kardex/pkg/numerator"
)

// App holds connected infrastructure and the services built on it.
type App struct {
	Pool  *postgres.Pool
	Redis *redis.Client

	Movements *posting.Service
	Stock     *stock.Service
	Kardex    *kardex.Service
	Audit     audit.Reader
}

// New connects to PostgreSQL and Redis and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	if cfg.DB.MinConns > 0 {
		poolCfg.MinConns = cfg.DB.MinConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Infow("redis connection established", "addr", cfg.Redis.Addr)

	txManager := postgres.NewTxManager(pool)

	auditService, err := postgres.NewAuditService(txManager, cfg.Audit.CompressThreshold)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("create audit service: %w", err)
	}

	stockRepo := register_repo.NewStockRepo(txManager)
	kardexRepo := register_repo.NewKardexRepo(txManager)
	warehouseRepo := catalog_repo.NewWarehouseRepo(txManager)

	locker := lock.NewRedisLocker(rdb, lock.Config{
		TTL:  cfg.Redis.LockTTL,
		Wait: cfg.Redis.LockWait,
	})

	movements := posting.NewService(posting.NewEngine(), posting.Deps{
		Warehouses: warehouse.NewService(warehouseRepo),
		Balances:   stockRepo,
		Kardex:     kardexRepo,
		TxManager:  txManager,
		Locker:     locker,
		// Numbers come from sys_sequences inside the posting transaction.
		Numerator: numerator.New(postgres.NewContextQuerier(txManager)),
		Audit:     auditService,
	})

	return &App{
		Pool:      pool,
		Redis:     rdb,
		Movements: movements,
		Stock:     stock.NewService(stockRepo).WithSnapshot(txManager),
		Kardex:    kardex.NewService(kardexRepo),
		Audit:     auditService,
	}, nil
}

// QueueOpts returns asynq connection options for the configured Redis.
func QueueOpts(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// RedisPinger adapts the redis client to a health check.
func (a *App) RedisPinger() PingFunc {
	return func(ctx context.Context) error {
		return a.Redis.Ping(ctx).Err()
	}
}

// PingFunc is a health check function.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
