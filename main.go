// Package main is the entry point for the Balgil map client.
package main

import (
	"context"
	"fmt"
	"os"

	"balgil/bootstrap"
	"balgil/cmd"
)

// run initializes and starts the Balgil client.
func run(ctx context.Context, configPath string) error {
	// Create and wire the application
	app, err := bootstrap.NewApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Run the startup sequence and show the first screen
	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	app.WaitForShutdown()

	// Graceful shutdown
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	if err := cmd.NewRootCmd(run).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
