package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"balgil/metrics"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`

// SQLiteSettings keeps settings in the local database file
type SQLiteSettings struct {
	sqlite *SQLite
}

// NewSQLiteSettings creates the settings table if needed
func NewSQLiteSettings(ctx context.Context, sqlite *SQLite) (*SQLiteSettings, error) {
	if err := sqlite.Migrate(ctx, settingsSchema); err != nil {
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &SQLiteSettings{sqlite: sqlite}, nil
}

// Get returns a setting
func (s *SQLiteSettings) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	var value string
	err := s.sqlite.DB.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", PrefixedKey(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		metrics.SettingsErrors.WithLabelValues("sqlite", "get").Inc()
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a setting
func (s *SQLiteSettings) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		PrefixedKey(key), value, time.Now().UTC())
	if err != nil {
		metrics.SettingsErrors.WithLabelValues("sqlite", "set").Inc()
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting; deleting an absent key is not an error
func (s *SQLiteSettings) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", PrefixedKey(key)); err != nil {
		metrics.SettingsErrors.WithLabelValues("sqlite", "delete").Inc()
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// All returns every balgil setting
func (s *SQLiteSettings) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.sqlite.DB.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		metrics.SettingsErrors.WithLabelValues("sqlite", "list").Inc()
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if name, ok := UnprefixedKey(k); ok {
			out[name] = v
		}
	}
	return out, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteSettings) Close() error {
	return s.sqlite.Close()
}
