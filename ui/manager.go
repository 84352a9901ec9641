// Package ui holds the client's presentation state: persisted user
// preferences, the travel mode indicator, the active screen and the
// navigation session restored at startup.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"balgil/core"
	"balgil/storage"

	"go.uber.org/zap"
)

const (
	// DefaultOverlayOpacity is the overlay opacity percentage before the user changes it
	DefaultOverlayOpacity = 30
	// MaxOverlayOpacity caps the opacity slider
	MaxOverlayOpacity = 50
)

var (
	// ErrNotBound is returned by Dispatch before Init has bound the handlers
	ErrNotBound = errors.New("ui event handlers not bound")
	// ErrUnknownAction is returned by Dispatch for unregistered actions
	ErrUnknownAction = errors.New("unknown ui action")
)

// Action names a user interaction the manager handles
type Action string

const (
	ActionSelectMode         Action = "select-mode"
	ActionToggleMode         Action = "toggle-mode"
	ActionSetOverlayOpacity  Action = "set-overlay-opacity"
	ActionCompleteOnboarding Action = "complete-onboarding"
)

// Indicator is what the mode indicator currently shows
type Indicator struct {
	Mode  core.UserMode `json:"mode"`
	Icon  string        `json:"icon"`
	Label string        `json:"label"`
}

// Manager owns user preferences and reacts to UI actions
type Manager struct {
	settings storage.SettingsStore
	logger   *zap.SugaredLogger

	mu         sync.RWMutex
	handlers   map[Action]func(ctx context.Context, value string) error
	mode       core.UserMode
	opacity    int
	onboarded  bool
	indicator  Indicator
	navigation *core.SessionState
}

// NewManager creates a manager. A nil settings store keeps preferences in
// memory only.
func NewManager(settings storage.SettingsStore, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		settings: settings,
		logger:   logger,
		mode:     core.UserModeWalking,
		opacity:  DefaultOverlayOpacity,
	}
}

// Init binds the action handlers. Calling it again is a no-op.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handlers != nil {
		return nil
	}

	m.handlers = map[Action]func(context.Context, string) error{
		ActionSelectMode: func(ctx context.Context, v string) error {
			return m.SetMode(ctx, core.UserMode(v))
		},
		ActionToggleMode: func(ctx context.Context, _ string) error {
			next := core.UserModeWheelchair
			if m.Mode() == core.UserModeWheelchair {
				next = core.UserModeWalking
			}
			return m.SetMode(ctx, next)
		},
		ActionSetOverlayOpacity: func(ctx context.Context, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid opacity %q: %w", v, err)
			}
			return m.SetOverlayOpacity(ctx, n)
		},
		ActionCompleteOnboarding: func(ctx context.Context, _ string) error {
			return m.CompleteOnboarding(ctx)
		},
	}

	m.logger.Debug("UI handlers bound")
	return nil
}

// Dispatch routes a user action to its handler
func (m *Manager) Dispatch(ctx context.Context, action Action, value string) error {
	m.mu.RLock()
	handlers := m.handlers
	m.mu.RUnlock()

	if handlers == nil {
		return ErrNotBound
	}
	fn, ok := handlers[action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return fn(ctx, value)
}

// LoadSavedSettings loads the user mode and overlay opacity into the manager
// and returns the persisted onboarding flag. Missing keys fall back to
// walking, 30 and false.
func (m *Manager) LoadSavedSettings(ctx context.Context) (bool, error) {
	mode := core.UserModeWalking
	opacity := DefaultOverlayOpacity
	onboarded := false

	if m.settings != nil {
		raw, err := storage.GetString(ctx, m.settings, storage.KeyUserMode, string(core.UserModeWalking))
		if err != nil {
			return false, fmt.Errorf("failed to load user mode: %w", err)
		}
		if candidate := core.UserMode(raw); candidate.IsValid() {
			mode = candidate
		}

		if opacity, err = storage.GetInt(ctx, m.settings, storage.KeyOverlayOpacity, DefaultOverlayOpacity); err != nil {
			return false, fmt.Errorf("failed to load overlay opacity: %w", err)
		}

		if onboarded, err = storage.GetBool(ctx, m.settings, storage.KeyOnboardingComplete, false); err != nil {
			return false, fmt.Errorf("failed to load onboarding flag: %w", err)
		}
	}

	m.mu.Lock()
	m.mode = mode
	m.opacity = clampOpacity(opacity)
	m.onboarded = onboarded
	m.mu.Unlock()

	m.logger.Infow("Saved settings loaded", "mode", mode, "overlay_opacity", opacity, "onboarding_complete", onboarded)
	return onboarded, nil
}

// UpdateModeIndicator refreshes the indicator for the current mode
func (m *Manager) UpdateModeIndicator() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indicator = Indicator{Mode: m.mode, Icon: m.mode.Icon(), Label: m.mode.Label()}
}

// Indicator returns what the mode indicator shows
func (m *Manager) Indicator() Indicator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indicator
}

// Mode returns the selected travel mode
func (m *Manager) Mode() core.UserMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// OverlayOpacity returns the overlay opacity percentage
func (m *Manager) OverlayOpacity() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opacity
}

// OnboardingComplete reports the last loaded or saved onboarding flag
func (m *Manager) OnboardingComplete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.onboarded
}

// SetMode persists and applies a travel mode
func (m *Manager) SetMode(ctx context.Context, mode core.UserMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("invalid user mode %q", mode)
	}
	if err := m.persist(ctx, storage.KeyUserMode, string(mode)); err != nil {
		return err
	}
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	m.UpdateModeIndicator()
	return nil
}

// SetOverlayOpacity persists the opacity, clamped to [0, MaxOverlayOpacity]
func (m *Manager) SetOverlayOpacity(ctx context.Context, pct int) error {
	pct = clampOpacity(pct)
	if err := m.persist(ctx, storage.KeyOverlayOpacity, strconv.Itoa(pct)); err != nil {
		return err
	}
	m.mu.Lock()
	m.opacity = pct
	m.mu.Unlock()
	return nil
}

// CompleteOnboarding persists the current mode and the onboarding flag
func (m *Manager) CompleteOnboarding(ctx context.Context) error {
	if err := m.persist(ctx, storage.KeyUserMode, string(m.Mode())); err != nil {
		return err
	}
	if err := m.persist(ctx, storage.KeyOnboardingComplete, "true"); err != nil {
		return err
	}
	m.mu.Lock()
	m.onboarded = true
	m.mu.Unlock()
	m.UpdateModeIndicator()
	return nil
}

// RestoreNavigationSession resumes an interrupted navigation
func (m *Manager) RestoreNavigationSession(ctx context.Context, state *core.SessionState) error {
	if state == nil || state.Destination == nil {
		return fmt.Errorf("no navigation to restore")
	}

	m.mu.Lock()
	m.navigation = state
	if state.Mode.IsValid() {
		m.mode = state.Mode
	}
	m.mu.Unlock()
	m.UpdateModeIndicator()

	m.logger.Infow("Navigation session restored",
		"destination", state.Destination.Name,
		"points", len(state.RouteHistory),
		"last_update", state.UpdatedAt)
	return nil
}

// ActiveNavigation returns the restored session, if any
func (m *Manager) ActiveNavigation() *core.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.navigation
}

func (m *Manager) persist(ctx context.Context, key, value string) error {
	if m.settings == nil {
		return nil
	}
	if err := m.settings.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func clampOpacity(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > MaxOverlayOpacity {
		return MaxOverlayOpacity
	}
	return pct
}
