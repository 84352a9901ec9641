package bootstrap

import (
	"context"

	"balgil/connectivity"
	"balgil/core"
)

// Telemetry is the debug overlay. Init is synchronous.
type Telemetry interface {
	Init(ctx context.Context) error
}

// Social is the message feed. Init may keep loading in the background.
type Social interface {
	Init(ctx context.Context) error
}

// UI binds user interactions and owns persisted preferences
type UI interface {
	Init(ctx context.Context) error
	LoadSavedSettings(ctx context.Context) (bool, error)
	UpdateModeIndicator()
}

// DataStore is the route collector. SyncToServer must be safe under
// overlapping calls.
type DataStore interface {
	Init(ctx context.Context) error
	SyncToServer(ctx context.Context) error
	CheckSyncEligibility(force bool) bool
}

// Map is initialized only once onboarding is confirmed
type Map interface {
	Init(ctx context.Context) error
}

// Screens switches the top-level screen
type Screens interface {
	ShowScreen(id core.ScreenID) error
}

// Restorer resumes an interrupted navigation session
type Restorer interface {
	RestoreSession(ctx context.Context) error
}

// Subsystems are the orchestrator's collaborators. Any field may be nil;
// an absent collaborator is skipped and never treated as a failure.
type Subsystems struct {
	Telemetry Telemetry
	Social    Social
	UI        UI
	Data      DataStore
	Map       Map
	Screens   Screens
	Network   connectivity.Signal
	Restorer  Restorer
}
