package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"balgil/core"
	"balgil/storage"

	"go.uber.org/zap"
)

// SessionSource loads the persisted navigation session
type SessionSource interface {
	LoadSessionState(ctx context.Context) (*core.SessionState, error)
}

// SessionRestorer resumes an interrupted navigation once the main screen is
// up. The collector's store is consulted first, then the emergency snapshot
// kept in settings.
type SessionRestorer struct {
	source   SessionSource
	settings storage.SettingsStore
	manager  *Manager
	logger   *zap.SugaredLogger
}

// NewSessionRestorer creates a restorer; source and settings may be nil
func NewSessionRestorer(source SessionSource, settings storage.SettingsStore, manager *Manager, logger *zap.SugaredLogger) *SessionRestorer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SessionRestorer{source: source, settings: settings, manager: manager, logger: logger}
}

// RestoreSession restores the saved session if there is one. Having nothing
// to restore is not an error.
func (r *SessionRestorer) RestoreSession(ctx context.Context) error {
	var state *core.SessionState

	if r.source != nil {
		loaded, err := r.source.LoadSessionState(ctx)
		if err != nil {
			r.logger.Warnw("Session store unavailable, trying emergency snapshot", "error", err)
		}
		state = loaded
	}

	if state == nil {
		state = r.loadEmergency(ctx)
	}
	if state == nil {
		r.logger.Debug("No navigation session to restore")
		return nil
	}

	if err := r.manager.RestoreNavigationSession(ctx, state); err != nil {
		return fmt.Errorf("failed to restore navigation session: %w", err)
	}
	return nil
}

// SaveEmergencyState writes a snapshot to settings for hosts that are being
// torn down and cannot wait for the collector.
func (r *SessionRestorer) SaveEmergencyState(ctx context.Context, state core.SessionState) error {
	if r.settings == nil {
		return nil
	}
	state.ID = core.SessionStateID
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode emergency state: %w", err)
	}
	return r.settings.Set(ctx, storage.KeyEmergencyNavState, string(data))
}

// SaveOnTeardown snapshots the manager's active navigation so the next
// launch can resume it. With no navigation in progress the old snapshot is
// dropped.
func (r *SessionRestorer) SaveOnTeardown(ctx context.Context) error {
	if r.settings == nil {
		return nil
	}
	active := r.manager.ActiveNavigation()
	if active == nil || !active.IsNavigating || active.Destination == nil {
		if err := r.settings.Delete(ctx, storage.KeyEmergencyNavState); err != nil {
			return fmt.Errorf("failed to clear emergency state: %w", err)
		}
		return nil
	}

	state := *active
	state.UpdatedAt = time.Now()
	if err := r.SaveEmergencyState(ctx, state); err != nil {
		return err
	}
	r.logger.Infow("Saved emergency navigation snapshot", "destination", state.Destination.Name)
	return nil
}

func (r *SessionRestorer) loadEmergency(ctx context.Context) *core.SessionState {
	if r.settings == nil {
		return nil
	}
	raw, ok, err := r.settings.Get(ctx, storage.KeyEmergencyNavState)
	if err != nil || !ok {
		return nil
	}

	var state core.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		r.logger.Warnw("Discarding unreadable emergency snapshot", "error", err)
		_ = r.settings.Delete(ctx, storage.KeyEmergencyNavState)
		return nil
	}
	r.logger.Info("Restoring from emergency snapshot")
	return &state
}
