package bootstrap

import (
	"errors"
	"time"

	"balgil/config"
	"balgil/core"
)

var (
	// ErrSubsystemInit wraps an initializer that returned an error or panicked
	ErrSubsystemInit = errors.New("subsystem init failed")
	// ErrSubsystemInitTimeout marks the data store initializer losing its race
	ErrSubsystemInitTimeout = errors.New("subsystem init timed out")
	// ErrSettingsLoad marks a failed onboarding flag read; treated as not onboarded
	ErrSettingsLoad = errors.New("settings load failed")
	// ErrDecision marks a failure inside the screen decision; main-screen is forced
	ErrDecision = errors.New("startup decision failed")
)

// Subsystem names, in init priority order
const (
	SubsystemTelemetry = "telemetry"
	SubsystemSocial    = "social"
	SubsystemUI        = "ui"
	SubsystemData      = "data"
)

// Status is how a subsystem initializer settled
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
	// StatusSkipped means the collaborator is absent
	StatusSkipped Status = "skipped"
)

// InitOutcome records one initializer attempt
type InitOutcome struct {
	Subsystem string
	Status    Status
	Err       error
	Duration  time.Duration
}

// StartupDecision is the screen chosen after the join. Err is set when the
// decision fell back to main-screen.
type StartupDecision struct {
	OnboardingComplete bool
	TargetScreen       core.ScreenID
	Err                error
}

// State is the orchestrator's progress. It only moves forward.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateDeciding
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateDeciding:
		return "deciding"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Timings are the bootstrap delays
type Timings = config.Timings

// DefaultTimings returns the production delays
func DefaultTimings() Timings {
	return Timings{
		Splash:                2 * time.Second,
		DataStoreTimeout:      3 * time.Second,
		SyncDelay:             3 * time.Second,
		RestoreDelay:          1 * time.Second,
		NetworkChangeDebounce: 3 * time.Second,
	}
}
