package cmd

import (
	"context"
	"fmt"

	"balgil/core"
	"balgil/storage"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newSettingsCmd creates the 'settings' command with its subcommands
func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit stored preferences",
	}

	settingsCmd.AddCommand(newSettingsShowCmd())
	settingsCmd.AddCommand(newSettingsModeCmd())
	settingsCmd.AddCommand(newSettingsResetOnboardingCmd())

	return settingsCmd
}

// newSettingsShowCmd creates the 'settings show' subcommand
func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Aliases: []string{"ls"},
		Short:   "Print every stored setting",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			_, settings, _, cleanup, err := openSettings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := settings.All(ctx)
			if err != nil {
				return err
			}
			// The cached feed is large and not a preference
			delete(all, storage.KeyMessages)

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), all)
			}

			if len(all) == 0 {
				warningColor.Fprintln(cmd.OutOrStdout(), "No settings stored")
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(all)
		},
	}
}

// newSettingsModeCmd creates the 'settings mode' subcommand
func newSettingsModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "mode <walking|wheelchair>",
		Short:     "Set the travel mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(core.UserModeWalking), string(core.UserModeWheelchair)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := core.UserMode(args[0])
			if !mode.IsValid() {
				return fmt.Errorf("invalid mode %q: must be %s or %s", args[0], core.UserModeWalking, core.UserModeWheelchair)
			}

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			_, settings, _, cleanup, err := openSettings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := settings.Set(ctx, storage.KeyUserMode, string(mode)); err != nil {
				return err
			}

			if !quiet && !outputJSON {
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Mode set to %s %s\n", mode.Icon(), mode.Label())
			}
			return nil
		},
	}
}

// newSettingsResetOnboardingCmd creates the 'settings reset-onboarding' subcommand
func newSettingsResetOnboardingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-onboarding",
		Short: "Show the permission screen again on next start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			_, settings, _, cleanup, err := openSettings(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := settings.Delete(ctx, storage.KeyOnboardingComplete); err != nil {
				return err
			}

			if !quiet && !outputJSON {
				successColor.Fprintln(cmd.OutOrStdout(), "✓ Onboarding reset")
			}
			return nil
		},
	}
}
