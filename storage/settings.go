package storage

import (
	"context"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every persisted setting.
const KeyPrefix = "balgil_"

// Well-known setting keys (unprefixed)
const (
	KeyUserMode           = "userMode"
	KeyOverlayOpacity     = "overlayOpacity"
	KeyOnboardingComplete = "onboardingComplete"
	KeyUserID             = "userId"
	// KeyEmergencyNavState holds a JSON session snapshot written when the
	// host is torn down before the collector could persist one
	KeyEmergencyNavState = "emergencyNavState"
	// KeyMessages caches the last fetched social feed as JSON
	KeyMessages = "messages"
)

// SettingsStore is a small string key/value store for user preferences.
// Keys passed in and returned are unprefixed; backends apply KeyPrefix.
type SettingsStore interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// All returns every stored setting
	All(ctx context.Context) (map[string]string, error)
	Close() error
}

// PrefixedKey returns the backend key for a setting
func PrefixedKey(key string) string {
	return KeyPrefix + key
}

// UnprefixedKey strips KeyPrefix; ok is false for foreign keys
func UnprefixedKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, KeyPrefix), true
}

// GetString returns the stored value or def when absent
func GetString(ctx context.Context, s SettingsStore, key, def string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// GetBool reports true only for the literal "true", matching how the flag is
// written. Absent keys yield def.
func GetBool(ctx context.Context, s SettingsStore, key string, def bool) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v == "true", nil
}

// GetInt returns def when the key is absent or not an integer
func GetInt(ctx context.Context, s SettingsStore, key string, def int) (int, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(v))
	if convErr != nil {
		return def, nil
	}
	return n, nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
