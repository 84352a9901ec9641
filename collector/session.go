package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"balgil/core"

	"github.com/vmihailenco/msgpack/v5"
)

// SaveSessionState persists the single active navigation session,
// replacing any previous one.
func (c *Collector) SaveSessionState(ctx context.Context, state core.SessionState) error {
	db, err := c.store()
	if err != nil {
		return err
	}

	state.ID = core.SessionStateID
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = c.now().UTC()
	}

	data, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	_, err = db.DB.ExecContext(ctx, `
		INSERT INTO session_state (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		core.SessionStateID, data, state.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// LoadSessionState returns the saved session, or nil when there is none or
// the stored record does not describe a restorable navigation.
func (c *Collector) LoadSessionState(ctx context.Context) (*core.SessionState, error) {
	db, err := c.store()
	if err != nil {
		return nil, err
	}

	var data []byte
	err = db.DB.QueryRowContext(ctx, "SELECT data FROM session_state WHERE id = ?", core.SessionStateID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var state core.SessionState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		c.logger.Warnw("Discarding undecodable session state", "error", err)
		return nil, nil
	}
	if err := c.validate.Struct(&state); err != nil {
		c.logger.Debugw("Saved session state is not restorable", "reason", err)
		return nil, nil
	}
	return &state, nil
}

// ClearSessionState removes the saved session
func (c *Collector) ClearSessionState(ctx context.Context) error {
	db, err := c.store()
	if err != nil {
		return err
	}
	if _, err := db.DB.ExecContext(ctx, "DELETE FROM session_state WHERE id = ?", core.SessionStateID); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}
