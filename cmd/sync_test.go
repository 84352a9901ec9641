package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"balgil/collector"
	"balgil/connectivity"
	"balgil/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouteServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	var uploads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/routes") {
			http.NotFound(w, r)
			return
		}
		uploads.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &uploads
}

// seedRoutes stores n routes while offline so they wait for a sync
func seedRoutes(t *testing.T, dataDir string, n int) {
	t.Helper()
	ctx := context.Background()
	c, err := collector.New(collector.Options{
		DBPath: filepath.Join(dataDir, "balgil.db"),
		Status: connectivity.NewBroadcaster(false),
	})
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	defer c.Close()

	for i := 0; i < n; i++ {
		_, err := c.SaveRoute(ctx, core.Route{
			Points: []core.Point{
				{Lat: 37.5665, Lon: 126.9780},
				{Lat: 37.5547, Lon: 126.9707},
			},
			Mode:     core.UserModeWheelchair,
			Duration: 5 * time.Minute,
		})
		require.NoError(t, err)
	}
}

func TestSyncUploadsQueuedRoutes(t *testing.T) {
	srv, uploads := newRouteServer(t, http.StatusCreated)
	dataDir := t.TempDir()
	seedRoutes(t, dataDir, 2)

	out, err := execute(t, nil, "sync", "--json", "--quiet", "--config", writeConfig(t, dataDir, srv.URL))
	require.NoError(t, err)

	var result syncResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Uploaded)
	assert.Zero(t, result.Pending)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.UserID)
	assert.EqualValues(t, 2, uploads.Load())

	out, err = execute(t, nil, "sync", "--json", "--quiet", "--config", writeConfig(t, dataDir, srv.URL))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Uploaded, "routes are only uploaded once")
}

func TestSyncReportsServerFailure(t *testing.T) {
	srv, _ := newRouteServer(t, http.StatusInternalServerError)
	dataDir := t.TempDir()
	seedRoutes(t, dataDir, 2)

	out, err := execute(t, nil, "sync", "--json", "--quiet", "--config", writeConfig(t, dataDir, srv.URL))
	require.Error(t, err)

	var result syncResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Uploaded)
	assert.Equal(t, 2, result.Pending)
	assert.Contains(t, result.Error, "server rejected route")
}

func TestSyncHumanOutput(t *testing.T) {
	srv, _ := newRouteServer(t, http.StatusCreated)
	dataDir := t.TempDir()
	seedRoutes(t, dataDir, 1)

	out, err := execute(t, nil, "sync", "--quiet", "--no-color", "--config", writeConfig(t, dataDir, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "ROUTE SYNC")
	assert.Contains(t, out, "Uploaded 1 route(s)")
}

func TestSyncRequiresServer(t *testing.T) {
	_, err := execute(t, nil, "sync", "--quiet", "--config", writeConfig(t, t.TempDir(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.base_url")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", formatDuration(2*time.Minute))
}
