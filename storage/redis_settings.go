package storage

import (
	"context"
	"errors"
	"fmt"

	"balgil/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSettings keeps settings in Redis, for hosts that share preferences
// across devices.
type RedisSettings struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisSettings creates a Redis-backed settings store
func NewRedisSettings(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisSettings {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisSettings{client: client, logger: logger}
}

// Ping tests the Redis connection
func (rs *RedisSettings) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Get returns a setting
func (rs *RedisSettings) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	value, err := rs.client.Get(ctx, PrefixedKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		rs.logger.Errorw("Failed to read setting", "key", key, "error", err)
		metrics.SettingsErrors.WithLabelValues("redis", "get").Inc()
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a setting without expiry
func (rs *RedisSettings) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := rs.client.Set(ctx, PrefixedKey(key), value, 0).Err(); err != nil {
		metrics.SettingsErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting
func (rs *RedisSettings) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := rs.client.Del(ctx, PrefixedKey(key)).Err(); err != nil {
		metrics.SettingsErrors.WithLabelValues("redis", "delete").Inc()
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// All scans every key under KeyPrefix
func (rs *RedisSettings) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	iter := rs.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		value, err := rs.client.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			metrics.SettingsErrors.WithLabelValues("redis", "list").Inc()
			return nil, fmt.Errorf("failed to read setting %s: %w", full, err)
		}
		if name, ok := UnprefixedKey(full); ok {
			out[name] = value
		}
	}
	if err := iter.Err(); err != nil {
		metrics.SettingsErrors.WithLabelValues("redis", "list").Inc()
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return out, nil
}

// Close closes the Redis connection
func (rs *RedisSettings) Close() error {
	return rs.client.Close()
}
