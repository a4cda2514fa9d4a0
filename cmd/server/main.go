package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/TxtConvert/internal/config"
	"github.com/JonMunkholm/TxtConvert/internal/core"
	"github.com/JonMunkholm/TxtConvert/internal/logging"
	"github.com/JonMunkholm/TxtConvert/internal/throttle"
	"github.com/JonMunkholm/TxtConvert/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_file_size", cfg.Convert.MaxFileSize,
		"convert_max_concurrent", cfg.Convert.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"rate_limit_backend", cfg.Rate.Backend,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open conversion history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to ping redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	thr, err := buildThrottle(jobCtx, cfg, rdb)
	if err != nil {
		slog.Error("failed to create throttle", "error", err)
		os.Exit(1)
	}

	service := core.NewService(core.ServiceOptions{
		MaxConcurrent:   cfg.Convert.MaxConcurrent,
		MaxWait:         cfg.Convert.MaxWaitTime,
		StrictFourField: cfg.Convert.StrictFourField,
		History:         history,
	})

	server := web.NewServer(service, cfg, thr)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active conversions to complete (with timeout)
		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for conversions to complete", "active", status.Active)
			if err := service.WaitForConversions(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

// openHistory connects to PostgreSQL when DATABASE_URL is set and falls back
// to an in-memory ring otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (core.HistoryStore, func(), error) {
	if !cfg.Database.Enabled() {
		slog.Info("conversion history kept in memory", "size", cfg.Convert.HistorySize)
		return core.NewMemoryHistory(cfg.Convert.HistorySize), func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	history := core.NewPgHistory(pool)
	if err := history.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return history, pool.Close, nil
}

// buildThrottle creates the per-client conversion throttle for the
// configured backend. Disabled throttling yields a zero web.Throttle.
func buildThrottle(ctx context.Context, cfg *config.Config, rdb *redis.Client) (web.Throttle, error) {
	if !cfg.Rate.Enabled {
		slog.Info("rate limiting disabled")
		return web.Throttle{}, nil
	}

	limit := throttle.Limit{Capacity: cfg.Rate.Capacity, Window: cfg.Rate.Window}

	var stats throttle.StatsRecorder = throttle.NewMemoryStats()
	if cfg.Redis.StatsEnabled {
		stats = throttle.NewRedisStats(rdb, cfg.Redis.Prefix+":stats", cfg.Redis.StatsTTL)
	}

	if strings.EqualFold(cfg.Rate.Backend, "redis") {
		limiter, err := throttle.NewRedis(ctx, rdb, limit,
			throttle.WithKeyPrefix(cfg.Redis.Prefix+":throttle"),
			throttle.WithKeyTTL(cfg.Rate.IdleTTL),
		)
		if err != nil {
			return web.Throttle{}, err
		}
		slog.Info("rate limiting enabled", "backend", "redis", "capacity", limit.Capacity, "window", limit.Window)
		return web.Throttle{Limiter: limiter, Stats: stats}, nil
	}

	limiter, err := throttle.NewMemory(limit,
		throttle.WithIdleTTL(cfg.Rate.IdleTTL),
		throttle.WithSweepEvery(cfg.Rate.SweepInterval),
	)
	if err != nil {
		return web.Throttle{}, err
	}
	limiter.StartJanitor(ctx)

	slog.Info("rate limiting enabled", "backend", "memory", "capacity", limit.Capacity, "window", limit.Window)
	return web.Throttle{Limiter: limiter, Stats: stats, Buckets: limiter}, nil
}
