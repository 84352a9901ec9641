package collector

import (
	"context"
	"fmt"
	"time"

	"balgil/core"
	"balgil/metrics"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// SaveRoute stores a route locally and, when eligible, uploads it straight
// away. A failed upload leaves the route for the next sync. It returns the
// stored route's ID.
func (c *Collector) SaveRoute(ctx context.Context, route core.Route) (string, error) {
	db, err := c.store()
	if err != nil {
		return "", err
	}

	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	if route.Mode == "" {
		route.Mode = core.UserModeWalking
	}
	if route.Distance == 0 {
		route.Distance = core.PathLength(route.Points)
	}
	route.CreatedAt = c.now().UTC()
	route.Synced = false

	points, err := msgpack.Marshal(route.Points)
	if err != nil {
		return "", fmt.Errorf("failed to encode route points: %w", err)
	}
	approach, err := msgpack.Marshal(route.ApproachPath)
	if err != nil {
		return "", fmt.Errorf("failed to encode approach path: %w", err)
	}

	_, err = db.DB.ExecContext(ctx, `
		INSERT INTO routes (id, mode, points, approach_path, distance, duration_ms, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		route.ID, string(route.Mode), points, approach, route.Distance,
		route.Duration.Milliseconds(), route.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to store route: %w", err)
	}
	metrics.RoutesStored.Inc()

	if c.opts.ServerURL != "" && c.CheckSyncEligibility(false) {
		if err := c.uploadOne(ctx, route); err != nil {
			c.logger.Warnw("Immediate upload failed, route kept for later sync",
				"route_id", route.ID, "error", err)
		}
	}

	return route.ID, nil
}

// UnsyncedRoutes returns routes not yet uploaded, oldest first
func (c *Collector) UnsyncedRoutes(ctx context.Context) ([]core.Route, error) {
	db, err := c.store()
	if err != nil {
		return nil, err
	}

	rows, err := db.DB.QueryContext(ctx, `
		SELECT id, mode, points, approach_path, distance, duration_ms, created_at
		FROM routes WHERE synced = 0 ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced routes: %w", err)
	}
	defer rows.Close()

	var routes []core.Route
	for rows.Next() {
		var (
			r          core.Route
			mode       string
			points     []byte
			approach   []byte
			durationMs int64
			createdAt  int64
		)
		if err := rows.Scan(&r.ID, &mode, &points, &approach, &r.Distance, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		if err := msgpack.Unmarshal(points, &r.Points); err != nil {
			return nil, fmt.Errorf("failed to decode points of route %s: %w", r.ID, err)
		}
		if len(approach) > 0 {
			if err := msgpack.Unmarshal(approach, &r.ApproachPath); err != nil {
				return nil, fmt.Errorf("failed to decode approach path of route %s: %w", r.ID, err)
			}
		}
		r.Mode = core.UserMode(mode)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// PendingCount returns the number of routes waiting for upload
func (c *Collector) PendingCount(ctx context.Context) (int, error) {
	db, err := c.store()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM routes WHERE synced = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsynced routes: %w", err)
	}
	return n, nil
}

func (c *Collector) markSynced(ctx context.Context, id string) error {
	db, err := c.store()
	if err != nil {
		return err
	}
	if _, err := db.DB.ExecContext(ctx, "UPDATE routes SET synced = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark route %s synced: %w", id, err)
	}
	return nil
}
