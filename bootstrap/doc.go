// Package bootstrap starts the balgil client.
//
// The Orchestrator holds the splash screen while the subsystems come up,
// isolating each initializer's failure, then picks the first screen from
// the persisted onboarding flag. App wires the orchestrator to the real
// collaborators built from configuration.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, "config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
