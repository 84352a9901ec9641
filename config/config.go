package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StartupMode defines how the app handles failures while wiring collaborators,
// before the bootstrap sequence starts. Once the sequence runs, subsystem
// failures are always isolated regardless of mode.
type StartupMode string

const (
	// StartupModeStrict fails fast when a collaborator cannot be constructed
	StartupModeStrict StartupMode = "strict"
	// StartupModeGraceful leaves the collaborator out and carries on (default)
	StartupModeGraceful StartupMode = "graceful"
)

// Settings store backends
const (
	SettingsBackendSQLite = "sqlite"
	SettingsBackendRedis  = "redis"
)

// DataPaths holds data directory and file path configuration
type DataPaths struct {
	// DataDir is the base data directory (BALGIL_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the local store (BALGIL_SQLITE_PATH, default: ${DataDir}/balgil.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Timings controls the bootstrap sequence delays.
type Timings struct {
	Splash                time.Duration `mapstructure:"splash" validate:"gte=0"`
	DataStoreTimeout      time.Duration `mapstructure:"data_store_timeout" validate:"gt=0"`
	SyncDelay             time.Duration `mapstructure:"sync_delay" validate:"gte=0"`
	RestoreDelay          time.Duration `mapstructure:"restore_delay" validate:"gte=0"`
	NetworkChangeDebounce time.Duration `mapstructure:"network_change_debounce" validate:"gte=0"`
}

// Config holds all configuration for the balgil client
type Config struct {
	StartupMode StartupMode `mapstructure:"startup_mode" validate:"oneof=strict graceful"`

	DataPaths DataPaths `mapstructure:"data_paths"`

	Timings Timings `mapstructure:"timings"`

	Server struct {
		// BaseURL is the sync/social API origin; empty disables network calls
		BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
		Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	} `mapstructure:"server"`

	User struct {
		// ID identifies this device's uploads; generated and persisted when empty
		ID string `mapstructure:"id"`
	} `mapstructure:"user"`

	Settings struct {
		Backend string `mapstructure:"backend" validate:"oneof=sqlite redis"`
		Redis   struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db" validate:"gte=0"`
			PoolSize int    `mapstructure:"pool_size" validate:"gt=0"`
		} `mapstructure:"redis"`
	} `mapstructure:"settings"`

	Sync struct {
		RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
		Burst             int     `mapstructure:"burst" validate:"gt=0"`
		// SaveData mirrors the platform data-saver flag; eligible syncs are skipped while set
		SaveData       bool `mapstructure:"save_data"`
		CircuitBreaker struct {
			MaxFailures int           `mapstructure:"max_failures" validate:"gt=0"`
			Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
		} `mapstructure:"circuit_breaker"`
	} `mapstructure:"sync"`

	Network struct {
		// ProbeURL is polled to detect connectivity; empty means the host reports it
		ProbeURL      string        `mapstructure:"probe_url" validate:"omitempty,url"`
		ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gt=0"`
		StartOnline   bool          `mapstructure:"start_online"`
	} `mapstructure:"network"`

	Social struct {
		CacheSize int `mapstructure:"cache_size" validate:"gt=0"`
	} `mapstructure:"social"`

	Map struct {
		CenterLon float64 `mapstructure:"center_lon" validate:"gte=-180,lte=180"`
		CenterLat float64 `mapstructure:"center_lat" validate:"gte=-90,lte=90"`
		Zoom      int     `mapstructure:"zoom" validate:"gte=0,lte=22"`
	} `mapstructure:"map"`

	Debug struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
	} `mapstructure:"debug"`
}

func setDefaults() {
	viper.SetDefault("startup_mode", string(StartupModeGraceful))

	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("timings.splash", 2*time.Second)
	viper.SetDefault("timings.data_store_timeout", 3*time.Second)
	viper.SetDefault("timings.sync_delay", 3*time.Second)
	viper.SetDefault("timings.restore_delay", 1*time.Second)
	viper.SetDefault("timings.network_change_debounce", 3*time.Second)

	viper.SetDefault("server.base_url", "")
	viper.SetDefault("server.timeout", 10*time.Second)
	viper.SetDefault("user.id", "")

	viper.SetDefault("settings.backend", SettingsBackendSQLite)
	viper.SetDefault("settings.redis.addr", "localhost:6379")
	viper.SetDefault("settings.redis.password", "")
	viper.SetDefault("settings.redis.db", 0)
	viper.SetDefault("settings.redis.pool_size", 4)

	viper.SetDefault("sync.requests_per_second", 5.0)
	viper.SetDefault("sync.burst", 1)
	viper.SetDefault("sync.save_data", false)
	viper.SetDefault("sync.circuit_breaker.max_failures", 3)
	viper.SetDefault("sync.circuit_breaker.timeout", 30*time.Second)

	viper.SetDefault("network.probe_url", "")
	viper.SetDefault("network.probe_interval", 10*time.Second)
	viper.SetDefault("network.start_online", true)

	viper.SetDefault("social.cache_size", 500)

	// Seoul City Hall
	viper.SetDefault("map.center_lon", 126.9780)
	viper.SetDefault("map.center_lat", 37.5665)
	viper.SetDefault("map.zoom", 16)

	viper.SetDefault("debug.enabled", false)
	viper.SetDefault("debug.addr", "127.0.0.1:9464")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("BALGIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("startup_mode", "BALGIL_STARTUP_MODE")
	_ = viper.BindEnv("data_paths.data_dir", "BALGIL_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "BALGIL_SQLITE_PATH")
	_ = viper.BindEnv("server.base_url", "BALGIL_SERVER_URL")
	_ = viper.BindEnv("debug.enabled", "BALGIL_DEBUG")
}

// LoadConfig loads configuration from config.yaml (in . or ./config) and
// BALGIL_* environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file. An empty path
// falls back to the default search locations; a missing default file is not
// an error, a missing explicit one is.
func LoadConfigFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.ResolveDataPaths()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Settings.Backend == SettingsBackendRedis && c.Settings.Redis.Addr == "" {
		return fmt.Errorf("settings.redis.addr is required when settings.backend is %q", SettingsBackendRedis)
	}
	return nil
}

// ResolveDataPaths derives unset paths from DataDir
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "balgil.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "balgil.db")
	}
	return c.DataPaths.SQLitePath
}

// IsGracefulMode returns true if the startup mode is graceful
func (c *Config) IsGracefulMode() bool {
	return c.StartupMode != StartupModeStrict
}
