package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"balgil/core"
	"balgil/metrics"
)

// Skip reasons reported by Sync
const (
	SkipInProgress = "in_progress"
	SkipOffline    = "offline"
	SkipNoServer   = "no_server"
)

// SyncReport summarizes one Sync call
type SyncReport struct {
	// Skipped is empty when the sync ran
	Skipped  string `json:"skipped,omitempty"`
	Uploaded int    `json:"uploaded"`
	// Pending is the number of routes still unsynced afterwards
	Pending int `json:"pending"`
}

// routePayload is the upload body. points and approachPath travel as
// JSON-encoded strings, which is what the server stores verbatim.
type routePayload struct {
	Distance     float64   `json:"distance"`
	Duration     float64   `json:"duration"`
	Mode         string    `json:"mode"`
	StartCoords  []float64 `json:"startCoords"`
	EndCoords    []float64 `json:"endCoords"`
	Points       string    `json:"points"`
	ApproachPath string    `json:"approachPath"`
}

// Sync uploads every unsynced route, oldest first, and stops at the first
// failure. Overlapping calls and offline calls are skipped, not queued.
func (c *Collector) Sync(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	if !c.Ready() {
		metrics.SyncRuns.WithLabelValues("not_ready").Inc()
		return report, ErrNotReady
	}
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("Sync already running, skipping")
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		report.Skipped = SkipInProgress
		return report, nil
	}
	defer c.syncing.Store(false)

	if !c.online() {
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		report.Skipped = SkipOffline
		return report, nil
	}
	if c.opts.ServerURL == "" {
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		report.Skipped = SkipNoServer
		return report, nil
	}

	routes, err := c.UnsyncedRoutes(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		return report, err
	}

	for i, r := range routes {
		if err := c.uploadOne(ctx, r); err != nil {
			report.Pending = len(routes) - i
			metrics.SyncRuns.WithLabelValues("failed").Inc()
			return report, fmt.Errorf("sync stopped at route %s: %w", r.ID, err)
		}
		report.Uploaded++
	}

	metrics.SyncRuns.WithLabelValues("ok").Inc()
	return report, nil
}

// SyncToServer runs Sync and logs the result. It is the entry point used by
// background triggers, which have nobody to hand a report to.
func (c *Collector) SyncToServer(ctx context.Context) error {
	report, err := c.Sync(ctx)
	if err != nil {
		c.logger.Warnw("Sync failed", "uploaded", report.Uploaded, "pending", report.Pending, "error", err)
		return err
	}
	if report.Skipped != "" {
		c.logger.Debugw("Sync skipped", "reason", report.Skipped)
		return nil
	}
	if report.Uploaded > 0 {
		c.logger.Infow("Sync complete", "uploaded", report.Uploaded)
	}
	return nil
}

// uploadOne gates a single upload through the rate limiter and the circuit
// breaker, then marks the route synced.
func (c *Collector) uploadOne(ctx context.Context, r core.Route) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.breaker.Allow(); err != nil {
		return err
	}

	if err := c.upload(ctx, r); err != nil {
		if old, cur := c.breaker.RecordFailure(); old != cur {
			snap := c.breaker.Snapshot()
			c.logger.Warnw("Upload circuit breaker state changed",
				"from", old, "to", cur,
				"failures", snap.Failures,
				"retry_at", snap.RetryAt)
		}
		return err
	}
	if old, cur := c.breaker.RecordSuccess(); old != cur {
		c.logger.Infow("Upload circuit breaker state changed", "from", old, "to", cur)
	}
	metrics.RoutesUploaded.Inc()

	return c.markSynced(ctx, r.ID)
}

func (c *Collector) upload(ctx context.Context, r core.Route) error {
	points, err := json.Marshal(nonNil(r.Points))
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}
	approach, err := json.Marshal(nonNil(r.ApproachPath))
	if err != nil {
		return fmt.Errorf("failed to encode approach path: %w", err)
	}

	body, err := json.Marshal(routePayload{
		Distance:     r.Distance,
		Duration:     r.Duration.Seconds(),
		Mode:         string(r.Mode),
		StartCoords:  r.StartCoords(),
		EndCoords:    r.EndCoords(),
		Points:       string(points),
		ApproachPath: string(approach),
	})
	if err != nil {
		return fmt.Errorf("failed to encode route: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/users/%s/routes",
		strings.TrimRight(c.opts.ServerURL, "/"), url.PathEscape(c.opts.UserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server rejected route: %s", resp.Status)
	}
	return nil
}

func nonNil(points []core.Point) []core.Point {
	if points == nil {
		return []core.Point{}
	}
	return points
}
