package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// settingsBackends returns one fresh store per backend so the same
// behaviour is checked against both.
func settingsBackends(t *testing.T) map[string]SettingsStore {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := NewSQLiteSettings(ctx, newTestSQLite(t))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := NewRedisSettings(mr.Addr(), "", 0, 4, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = redisStore.Close() })
	require.NoError(t, redisStore.Ping(ctx))

	return map[string]SettingsStore{"sqlite": sqliteStore, "redis": redisStore}
}

func TestSettingsStore_GetSetDelete(t *testing.T) {
	for name, store := range settingsBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, KeyUserMode)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, KeyUserMode, "wheelchair"))
			require.NoError(t, store.Set(ctx, KeyUserMode, "walking"))

			v, ok, err := store.Get(ctx, KeyUserMode)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "walking", v)

			require.NoError(t, store.Delete(ctx, KeyUserMode))
			require.NoError(t, store.Delete(ctx, KeyUserMode))
			_, ok, err = store.Get(ctx, KeyUserMode)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSettingsStore_All(t *testing.T) {
	for name, store := range settingsBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, KeyOnboardingComplete, "true"))
			require.NoError(t, store.Set(ctx, KeyOverlayOpacity, "25"))

			all, err := store.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{
				KeyOnboardingComplete: "true",
				KeyOverlayOpacity:     "25",
			}, all)
		})
	}
}

func TestSettingsStore_RejectsEmptyKey(t *testing.T) {
	for name, store := range settingsBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, store.Set(ctx, " ", "x"), ErrInvalidKey)
			_, _, err := store.Get(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestRedisSettings_UsesPrefixedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSettings(mr.Addr(), "", 0, 4, zaptest.NewLogger(t).Sugar())
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), KeyOnboardingComplete, "true"))
	got, err := mr.Get("balgil_onboardingComplete")
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	// Foreign keys in the same database are ignored
	require.NoError(t, mr.Set("other_app_key", "x"))
	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRedisSettings_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSettings(mr.Addr(), "", 0, 4, zaptest.NewLogger(t).Sugar())
	defer store.Close()
	mr.Close()

	_, _, err := store.Get(context.Background(), KeyUserMode)
	assert.Error(t, err)
}

func TestTypedGetters(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSettings(ctx, newTestSQLite(t))
	require.NoError(t, err)

	b, err := GetBool(ctx, store, KeyOnboardingComplete, false)
	require.NoError(t, err)
	assert.False(t, b)

	require.NoError(t, store.Set(ctx, KeyOnboardingComplete, "yes"))
	b, err = GetBool(ctx, store, KeyOnboardingComplete, true)
	require.NoError(t, err)
	assert.False(t, b, "only the literal true counts")

	require.NoError(t, store.Set(ctx, KeyOnboardingComplete, "true"))
	b, err = GetBool(ctx, store, KeyOnboardingComplete, false)
	require.NoError(t, err)
	assert.True(t, b)

	n, err := GetInt(ctx, store, KeyOverlayOpacity, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	require.NoError(t, store.Set(ctx, KeyOverlayOpacity, "abc"))
	n, err = GetInt(ctx, store, KeyOverlayOpacity, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	require.NoError(t, store.Set(ctx, KeyOverlayOpacity, " 12 "))
	n, err = GetInt(ctx, store, KeyOverlayOpacity, 30)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	s, err := GetString(ctx, store, KeyUserMode, "walking")
	require.NoError(t, err)
	assert.Equal(t, "walking", s)
}

func TestUnprefixedKey(t *testing.T) {
	k, ok := UnprefixedKey("balgil_userMode")
	assert.True(t, ok)
	assert.Equal(t, "userMode", k)

	_, ok = UnprefixedKey("userMode")
	assert.False(t, ok)
}
