package cmd

import (
	"context"
	"fmt"
	"time"

	"balgil/bootstrap"
	"balgil/collector"
	"balgil/connectivity"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// syncResult is the --json output of 'sync'
type syncResult struct {
	collector.SyncReport
	UserID string `json:"userId"`
	Error  string `json:"error,omitempty"`
}

// newSyncCmd creates the 'sync' subcommand
func newSyncCmd() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload routes waiting in the local store",
		Long: `Upload every route recorded while offline, oldest first. The upload stops at
the first failure and the remaining routes stay queued for the next sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			cfg, settings, sugar, cleanup, err := openSettings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if cfg.Server.BaseURL == "" {
				return fmt.Errorf("server.base_url is not configured")
			}

			userID, err := bootstrap.EnsureUserID(ctx, settings, cfg.User.ID)
			if err != nil {
				return err
			}

			dirs := bootstrap.DataDirectoriesFromConfig(cfg)
			opts := bootstrap.CollectorOptions(cfg, dirs, userID, connectivity.NewBroadcaster(true), sugar.Named("collector"))
			c, err := collector.New(opts)
			if err != nil {
				return err
			}
			if err := c.Init(ctx); err != nil {
				return err
			}
			defer c.Close()

			var s *spinner.Spinner
			if showProgress && !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Writer = cmd.ErrOrStderr()
				s.Suffix = " Uploading routes..."
				s.Start()
			}

			start := time.Now()
			report, syncErr := c.Sync(ctx)

			if s != nil {
				s.Stop()
			}

			if outputJSON {
				result := syncResult{SyncReport: report, UserID: userID}
				if syncErr != nil {
					result.Error = syncErr.Error()
				}
				if err := outputAsJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return syncErr
			}

			renderSyncReport(cmd.OutOrStdout(), report, syncErr, time.Since(start))
			if syncErr != nil {
				return fmt.Errorf("sync failed: %w", syncErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show a progress spinner")

	return cmd
}
