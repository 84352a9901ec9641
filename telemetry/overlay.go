// Package telemetry serves the debug system monitor.
//
// When debug mode is off the overlay does nothing. When it is on, Init
// starts a small HTTP server exposing the current monitor lines as JSON,
// a websocket that pushes every update, and the Prometheus metrics.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"balgil/util/goroutine"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// GPS is the last position fix shown on the monitor
type GPS struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"acc"`
}

// Snapshot is what the monitor currently displays
type Snapshot struct {
	GPS       *GPS      `json:"gps,omitempty"`
	Distance  float64   `json:"dist"`
	Status    string    `json:"status"`
	Sync      string    `json:"sync"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncFailed reports whether the sync line shows a failure
func (s Snapshot) SyncFailed() bool {
	return strings.Contains(s.Sync, "Fail")
}

// Update carries the monitor lines to change; zero fields are left alone
type Update struct {
	GPS      *GPS
	Distance *float64
	Status   string
	Sync     string
}

// Options configures an Overlay
type Options struct {
	Enabled bool
	// Addr is the listen address, e.g. "127.0.0.1:9090"
	Addr   string
	Logger *zap.SugaredLogger
}

// Overlay is the debug telemetry subsystem
type Overlay struct {
	opts   Options
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	snapshot Snapshot
	started  bool
	server   *http.Server
	listener net.Listener
	hub      *hub
}

// New creates an overlay in its initial "Ready / Idle" state
func New(opts Options) *Overlay {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Overlay{
		opts:     opts,
		logger:   opts.Logger,
		snapshot: Snapshot{Status: "Ready", Sync: "Idle", UpdatedAt: time.Now()},
	}
}

// Init starts the debug server when debug mode is enabled. It returns once
// the listener is bound; later calls are no-ops.
func (o *Overlay) Init(ctx context.Context) error {
	if !o.opts.Enabled {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", o.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind debug overlay on %s: %w", o.opts.Addr, err)
	}

	o.hub = newHub(o.logger)
	go o.hub.run()

	o.listener = ln
	o.server = &http.Server{
		Handler:           o.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := o.server
	goroutine.Go("debug-overlay", o.logger, func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	o.started = true
	o.logger.Infow("Debug overlay listening", "addr", ln.Addr().String())
	return nil
}

// Handler returns the overlay's router
func (o *Overlay) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/debug/status", o.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/debug/ws", o.handleWebSocket).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// Addr returns the bound address, or "" when the overlay is not running
func (o *Overlay) Addr() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.listener == nil {
		return ""
	}
	return o.listener.Addr().String()
}

// Snapshot returns the current monitor lines
func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Update merges u into the monitor and pushes the result to viewers
func (o *Overlay) Update(u Update) {
	o.mu.Lock()
	if u.GPS != nil {
		gps := *u.GPS
		o.snapshot.GPS = &gps
	}
	if u.Distance != nil {
		o.snapshot.Distance = *u.Distance
	}
	if u.Status != "" {
		o.snapshot.Status = u.Status
	}
	if u.Sync != "" {
		o.snapshot.Sync = u.Sync
	}
	o.snapshot.UpdatedAt = time.Now()
	snap := o.snapshot
	h := o.hub
	o.mu.Unlock()

	if h == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		o.logger.Errorw("Failed to encode debug snapshot", "error", err)
		return
	}
	h.publish(data)
}

// Log shows msg on the status line
func (o *Overlay) Log(msg string) {
	o.Update(Update{Status: "Log: " + msg})
}

// Close stops the debug server
func (o *Overlay) Close(ctx context.Context) error {
	o.mu.Lock()
	server, h := o.server, o.hub
	o.server, o.hub, o.listener = nil, nil, nil
	o.started = false
	o.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	h.stop()
	return err
}

func (o *Overlay) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(o.Snapshot()); err != nil {
		o.logger.Warnw("Failed to write debug status", "error", err)
	}
}

func (o *Overlay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	h := o.hub
	snap := o.snapshot
	o.mu.RUnlock()

	if h == nil {
		http.Error(w, "debug overlay not running", http.StatusServiceUnavailable)
		return
	}
	initial, err := json.Marshal(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.serve(w, r, initial)
}
