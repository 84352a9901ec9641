package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"balgil/collector"
	"balgil/config"
	"balgil/connectivity"
	"balgil/core"
	"balgil/storage"

	"go.uber.org/zap"
)

// redisRetryDelays are the waits between Redis connection attempts
var redisRetryDelays = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// InitSettingsStore opens the configured settings backend.
func InitSettingsStore(ctx context.Context, cfg *config.Config, dirs DataDirectories, sugar *zap.SugaredLogger) (storage.SettingsStore, error) {
	switch cfg.Settings.Backend {
	case config.SettingsBackendRedis:
		return initRedisSettings(ctx, cfg, sugar)
	case config.SettingsBackendSQLite, "":
		return initSQLiteSettings(ctx, dirs, sugar)
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownBackend, cfg.Settings.Backend)
	}
}

func initSQLiteSettings(ctx context.Context, dirs DataDirectories, sugar *zap.SugaredLogger) (storage.SettingsStore, error) {
	sqlite, err := storage.NewSQLite(ctx, dirs.SQLite, sugar)
	if err != nil {
		errMsg := storage.ClassifySQLiteError(err, dirs.SQLite)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "Settings store unavailable\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	settings, err := storage.NewSQLiteSettings(ctx, sqlite)
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}

	sugar.Infow("Settings store ready", "backend", config.SettingsBackendSQLite, "path", dirs.SQLite)
	return settings, nil
}

func initRedisSettings(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.SettingsStore, error) {
	r := cfg.Settings.Redis
	settings := storage.NewRedisSettings(r.Addr, r.Password, r.DB, r.PoolSize, sugar)

	var lastErr error
	for attempt := 0; attempt <= len(redisRetryDelays); attempt++ {
		if attempt > 0 {
			delay := redisRetryDelays[attempt-1]
			sugar.Infow("Retrying Redis connection",
				"attempt", attempt,
				"max_retries", len(redisRetryDelays),
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				_ = settings.Close()
				return nil, ctx.Err()
			}
		}

		if lastErr = settings.Ping(ctx); lastErr == nil {
			break
		}
		sugar.Warnw("Redis connection attempt failed", "attempt", attempt+1, "error", lastErr)
	}

	if lastErr != nil {
		_ = settings.Close()
		fmt.Fprintf(os.Stderr, "\n%s\n\n", ClassifyConnectionError(lastErr, r.Addr))
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", len(redisRetryDelays)+1, lastErr)
	}

	sugar.Infow("Settings store ready", "backend", config.SettingsBackendRedis, "addr", r.Addr)
	return settings, nil
}

// CollectorOptions maps the sync configuration onto collector options.
func CollectorOptions(cfg *config.Config, dirs DataDirectories, userID string, status connectivity.Status, sugar *zap.SugaredLogger) collector.Options {
	return collector.Options{
		DBPath:            dirs.SQLite,
		ServerURL:         cfg.Server.BaseURL,
		UserID:            userID,
		Status:            status,
		SaveData:          cfg.Sync.SaveData,
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Burst:             cfg.Sync.Burst,
		Breaker: core.CircuitBreakerConfig{
			MaxFailures:         uint32(cfg.Sync.CircuitBreaker.MaxFailures),
			Timeout:             cfg.Sync.CircuitBreaker.Timeout,
			MaxHalfOpenRequests: 1,
		},
		HTTPClient: &http.Client{Timeout: cfg.Server.Timeout},
		Logger:     sugar,
	}
}
