package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"balgil/collector"
	"balgil/config"
	"balgil/connectivity"
	"balgil/core"
	"balgil/mapview"
	"balgil/social"
	"balgil/storage"
	"balgil/telemetry"
	"balgil/ui"
	"balgil/util/goroutine"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// App is the balgil client with all its collaborators wired up.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
	UserID string

	// Collaborators; any of them may be nil in graceful mode
	Settings  storage.SettingsStore
	Network   *connectivity.Broadcaster
	Prober    *connectivity.Prober
	Collector *collector.Collector
	Social    *social.Manager
	UI        *ui.Manager
	Navigator *ui.Navigator
	Restorer  *ui.SessionRestorer
	Map       *mapview.Manager
	Telemetry *telemetry.Overlay

	Orchestrator   *Orchestrator
	TracerProvider *sdktrace.TracerProvider
	Decision       StartupDecision

	// Lifecycle
	serviceWg    sync.WaitGroup
	cancelProbe  context.CancelFunc
	shutdownOnce sync.Once
}

// NewApp loads configuration from configPath (or the default locations when
// empty) and builds the application.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	logger, sugar, err := InitLogger(os.Getenv("BALGIL_DEBUG") == "true")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar.Info("Balgil client starting...")

	cfg, err := InitConfig(configPath, sugar)
	if err != nil {
		return nil, err
	}

	return NewAppWithConfig(ctx, cfg, logger)
}

// NewAppWithConfig builds the application from an already loaded config.
// In graceful mode a collaborator that cannot be built is left out and the
// bootstrap skips it; in strict mode the first such error is returned.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()
	app := &App{Config: cfg, Logger: logger, Sugar: sugar}

	// degrade returns err in strict mode, logs it otherwise
	degrade := func(component string, err error) error {
		if !cfg.IsGracefulMode() {
			return fmt.Errorf("failed to initialize %s: %w", component, err)
		}
		sugar.Warnw("Continuing without component", "component", component, "error", err)
		return nil
	}

	dirs := DataDirectoriesFromConfig(cfg)
	if err := EnsureDataDirectories(dirs, sugar); err != nil {
		if err := degrade("data directories", err); err != nil {
			return nil, err
		}
	}

	settings, err := InitSettingsStore(ctx, cfg, dirs, sugar)
	if err != nil {
		if err := degrade("settings store", err); err != nil {
			return nil, err
		}
	} else {
		app.Settings = settings
	}

	app.UserID, err = EnsureUserID(ctx, app.Settings, cfg.User.ID)
	if err != nil {
		sugar.Warnw("Using an ephemeral user id", "error", err)
		app.UserID = uuid.NewString()
	}

	app.Network = connectivity.NewBroadcaster(cfg.Network.StartOnline)
	app.Network.SetSaveData(cfg.Sync.SaveData)
	if cfg.Network.ProbeURL != "" {
		app.Prober = connectivity.NewProber(cfg.Network.ProbeURL, cfg.Network.ProbeInterval, app.Network, sugar)
	}

	opts := CollectorOptions(cfg, dirs, app.UserID, app.Network, sugar.Named("collector"))
	httpClient := opts.HTTPClient

	app.Collector, err = collector.New(opts)
	if err != nil {
		if err := degrade("data collector", err); err != nil {
			return nil, err
		}
	}

	app.Social, err = social.NewManager(social.Options{
		ServerURL:  cfg.Server.BaseURL,
		HTTPClient: httpClient,
		Settings:   app.Settings,
		CacheSize:  cfg.Social.CacheSize,
		Logger:     sugar.Named("social"),
	})
	if err != nil {
		if err := degrade("social", err); err != nil {
			return nil, err
		}
	}

	app.UI = ui.NewManager(app.Settings, sugar.Named("ui"))
	app.Navigator = ui.NewNavigator(sugar.Named("screens"))

	var source ui.SessionSource
	if app.Collector != nil {
		source = app.Collector
	}
	app.Restorer = ui.NewSessionRestorer(source, app.Settings, app.UI, sugar.Named("restore"))

	center := core.Point{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon}
	app.Map = mapview.NewManager(center, cfg.Map.Zoom, sugar.Named("map"))

	app.Telemetry = telemetry.New(telemetry.Options{
		Enabled: cfg.Debug.Enabled,
		Addr:    cfg.Debug.Addr,
		Logger:  sugar.Named("telemetry"),
	})
	app.Navigator.OnChange(func(_, to core.ScreenID) {
		app.Telemetry.Update(telemetry.Update{Status: "Screen: " + to.String()})
	})

	app.TracerProvider = NewTracerProvider(sugar.Named("trace"))
	app.Orchestrator = NewOrchestrator(app.subsystems(),
		WithLogger(sugar.Named("bootstrap")),
		WithTimings(cfg.Timings),
		WithTracer(app.TracerProvider.Tracer(tracerName)),
	)

	return app, nil
}

// subsystems collects the collaborators, leaving absent ones as nil interfaces
func (a *App) subsystems() Subsystems {
	subs := Subsystems{
		Telemetry: a.Telemetry,
		UI:        a.UI,
		Map:       a.Map,
		Screens:   a.Navigator,
		Network:   a.Network,
		Restorer:  a.Restorer,
	}
	if a.Social != nil {
		subs.Social = a.Social
	}
	if a.Collector != nil {
		subs.Data = a.Collector
	}
	return subs
}

// Start starts the connectivity prober, runs the bootstrap sequence and
// shows the first screen. It returns once the screen has been decided.
func (a *App) Start(ctx context.Context) error {
	if a.Prober != nil {
		probeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.cancelProbe = cancel
		a.serviceWg.Add(1)
		go func() {
			defer a.serviceWg.Done()
			defer goroutine.Recover("connectivity-prober", a.Sugar)
			a.Prober.Run(probeCtx)
		}()
	}

	a.Orchestrator.Run(ctx)
	a.Decision = a.Orchestrator.DecideAndTransition(ctx)
	if a.Decision.TargetScreen == "" {
		return fmt.Errorf("startup interrupted: %w", a.Decision.Err)
	}

	a.Sugar.Infow("Balgil client ready",
		"screen", a.Decision.TargetScreen,
		"user_id", a.UserID)
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown stops background work and closes the stores. It is safe to call
// more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop the watcher and pending deferred tasks, then snapshot
	// any navigation in progress while the settings store is still open
	if a.Orchestrator != nil {
		_ = a.Orchestrator.Close()
	}
	if a.Restorer != nil {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.Restorer.SaveOnTeardown(saveCtx); err != nil {
			a.Sugar.Warnw("Failed to save emergency navigation snapshot", "error", err)
		}
		saveCancel()
	}

	// Phase 2 - Stop the prober
	if a.cancelProbe != nil {
		a.cancelProbe()
	}
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	// Phase 3 - Stop the debug overlay
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.Telemetry != nil {
		if err := a.Telemetry.Close(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop debug overlay", "error", err)
		}
	}

	// Phase 4 - Close stores
	if a.Collector != nil {
		if err := a.Collector.Close(); err != nil {
			a.Sugar.Errorw("Failed to close data collector", "error", err)
		}
	}
	if a.Settings != nil {
		if err := a.Settings.Close(); err != nil {
			a.Sugar.Errorw("Failed to close settings store", "error", err)
		}
	}

	if a.TracerProvider != nil {
		_ = a.TracerProvider.Shutdown(ctx)
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
