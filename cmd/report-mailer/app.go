package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/report-mailer/internal/config"
	"github.com/sungwon/report-mailer/internal/httpapi"
	"github.com/sungwon/report-mailer/internal/logger"
	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/storage"
)

// app holds the infrastructure shared by every command. Close releases
// whatever was opened.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *storage.DB
	redis   *redis.Client
	backend *queue.Backend
}

func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &app{cfg: cfg, log: logger.NewFromConfig(cfg.Logging.Logger())}, nil
}

func (a *app) openDB(ctx context.Context) error {
	db, err := storage.NewDB(ctx, a.cfg.Database.URL, storage.PoolConfig{
		MinConns:       a.cfg.Database.PoolMin,
		MaxConns:       a.cfg.Database.PoolMax,
		ConnectTimeout: a.cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return nil
}

// needsRedis reports whether the queue backend or the report lock use Redis.
func (a *app) needsRedis() bool {
	return a.cfg.Queue.Type == "redis" || a.cfg.Lock.Enabled
}

func (a *app) openRedis(ctx context.Context) error {
	if !a.needsRedis() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redis = client
	return nil
}

func (a *app) openQueue(ctx context.Context) error {
	if a.cfg.Queue.Type == "redis" && a.redis == nil {
		if err := a.openRedis(ctx); err != nil {
			return err
		}
	}
	backend, err := queue.Open(ctx, a.cfg.Queue, a.redis, a.log)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	a.backend = backend
	return nil
}

// readiness lists the dependencies the readiness probe pings.
func (a *app) readiness() map[string]httpapi.Pinger {
	deps := map[string]httpapi.Pinger{}
	if a.db != nil {
		deps["database"] = a.db
	}
	if a.redis != nil {
		deps["redis"] = redisPinger{a.redis}
	}
	return deps
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }
