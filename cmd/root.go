// Package cmd provides the command-line interface for the Balgil client.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"balgil/bootstrap"
	"balgil/config"
	"balgil/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	outputJSON bool
	configFile string
	noColor    bool
	quiet      bool
)

// defaultTimeout bounds one-shot CLI operations
const defaultTimeout = 2 * time.Minute

// RunFunc starts the client and blocks until it shuts down.
type RunFunc func(ctx context.Context, configPath string) error

// NewRootCmd creates the balgil command. Invoked without a subcommand it
// behaves like "run".
func NewRootCmd(run RunFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "balgil",
		Short: "Balgil map client",
		Long: `Balgil records walking and wheelchair routes, shares nearby messages and
uploads collected routes whenever the device is online.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rootCmd.AddCommand(newRunCmd(run))
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSettingsCmd())

	return rootCmd
}

// newRunCmd creates the 'run' subcommand
func newRunCmd(run RunFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the client",
		Long:  "Run the startup sequence, show the first screen and keep syncing until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile)
		},
	}
}

// newCLILogger returns a production logger, or a no-op one in quiet mode
func newCLILogger() (*zap.SugaredLogger, error) {
	if quiet {
		return zap.NewNop().Sugar(), nil
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// loadCLIConfig loads the configuration named by --config
func loadCLIConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openSettings opens the configured settings store. The returned cleanup
// closes it.
func openSettings(ctx context.Context) (*config.Config, storage.SettingsStore, *zap.SugaredLogger, func(), error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	sugar, err := newCLILogger()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	dirs := bootstrap.DataDirectoriesFromConfig(cfg)
	if err := bootstrap.EnsureDataDirectories(dirs, sugar); err != nil {
		return nil, nil, nil, nil, err
	}

	settings, err := bootstrap.InitSettingsStore(ctx, cfg, dirs, sugar)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if err := settings.Close(); err != nil {
			sugar.Warnw("Failed to close settings store", "error", err)
		}
		_ = sugar.Sync()
	}
	return cfg, settings, sugar, cleanup, nil
}

// outputAsJSON writes data as indented JSON
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
