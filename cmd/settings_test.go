package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"balgil/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func showSettings(t *testing.T, configPath string) map[string]string {
	t.Helper()
	out, err := execute(t, nil, "settings", "show", "--json", "--quiet", "--config", configPath)
	require.NoError(t, err)

	var all map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	return all
}

func TestSettingsModeAndShow(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, nil, "settings", "mode", "wheelchair", "--no-color", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Mode set to ♿")

	all := showSettings(t, configPath)
	assert.Equal(t, "wheelchair", all[storage.KeyUserMode])
	assert.NotContains(t, all, storage.KeyMessages)
}

func TestSettingsModeRejectsUnknown(t *testing.T) {
	_, err := execute(t, nil, "settings", "mode", "bicycle", "--quiet", "--config", writeConfig(t, t.TempDir(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestSettingsShowYAML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "")
	_, err := execute(t, nil, "settings", "mode", "walking", "--quiet", "--config", configPath)
	require.NoError(t, err)

	out, err := execute(t, nil, "settings", "show", "--quiet", "--config", configPath)
	require.NoError(t, err)

	var all map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &all))
	assert.Equal(t, "walking", all[storage.KeyUserMode])
}

func TestSettingsShowEmpty(t *testing.T) {
	out, err := execute(t, nil, "settings", "show", "--quiet", "--no-color", "--config", writeConfig(t, t.TempDir(), ""))
	require.NoError(t, err)
	assert.Contains(t, out, "No settings stored")
}

// setOnboarded marks onboarding complete the way the permission screen does
func setOnboarded(t *testing.T, dataDir string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.NewSQLite(ctx, filepath.Join(dataDir, "balgil.db"), nil)
	require.NoError(t, err)
	settings, err := storage.NewSQLiteSettings(ctx, db)
	require.NoError(t, err)
	defer settings.Close()
	require.NoError(t, settings.Set(ctx, storage.KeyOnboardingComplete, "true"))
}

func TestSettingsResetOnboarding(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeConfig(t, dataDir, "")

	_, err := execute(t, nil, "settings", "mode", "walking", "--quiet", "--config", configPath)
	require.NoError(t, err)
	setOnboarded(t, dataDir)
	require.Equal(t, "true", showSettings(t, configPath)[storage.KeyOnboardingComplete])

	_, err = execute(t, nil, "settings", "reset-onboarding", "--quiet", "--config", configPath)
	require.NoError(t, err)

	all := showSettings(t, configPath)
	assert.NotContains(t, all, storage.KeyOnboardingComplete)
	assert.Equal(t, "walking", all[storage.KeyUserMode])
}
