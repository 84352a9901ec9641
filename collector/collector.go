// Package collector records trips locally and uploads them to the balgil
// server when the network allows it.
//
// Routes are written to SQLite first and uploaded either immediately (when
// eligible) or by a later SyncToServer call. At most one sync runs at a
// time; an overlapping call returns straight away.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"balgil/connectivity"
	"balgil/core"
	"balgil/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotReady is returned when the local store has not been opened yet
	ErrNotReady = errors.New("data collector not initialized")
	// ErrClosed is returned by Init once Close has been called
	ErrClosed = errors.New("data collector closed")
)

const schemaRoutes = `
CREATE TABLE IF NOT EXISTS routes (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	points BLOB NOT NULL,
	approach_path BLOB,
	distance REAL NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
)`

const schemaRoutesIndex = `CREATE INDEX IF NOT EXISTS idx_routes_synced_created ON routes(synced, created_at)`

const schemaSession = `
CREATE TABLE IF NOT EXISTS session_state (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Options configures a Collector
type Options struct {
	// DBPath is the SQLite file; it may be shared with the settings store
	DBPath string
	// ServerURL is the sync API origin; empty disables uploads
	ServerURL string
	UserID    string
	// Status reports connectivity; nil means always online
	Status connectivity.Status
	// SaveData forces data-saver behaviour regardless of Status
	SaveData bool

	RequestsPerSecond float64
	Burst             int
	Breaker           core.CircuitBreakerConfig

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
	// Now overrides the clock for the walking buffer
	Now func() time.Time
}

// Collector is the data store subsystem
type Collector struct {
	opts     Options
	logger   *zap.SugaredLogger
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *core.CircuitBreaker
	validate *validator.Validate
	now      func() time.Time

	initMu sync.Mutex
	dbMu   sync.RWMutex
	db     *storage.SQLite
	closed bool

	syncing atomic.Bool

	walkMu      sync.Mutex
	walking     []core.Point
	lastWalking time.Time
}

// New creates a collector. The store is not opened until Init.
func New(opts Options) (*Collector, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("collector: database path is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Breaker == (core.CircuitBreakerConfig{}) {
		opts.Breaker = core.DefaultCircuitBreakerConfig()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	breaker, err := core.NewCircuitBreaker(opts.Breaker)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}

	return &Collector{
		opts:     opts,
		logger:   opts.Logger,
		client:   opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker:  breaker,
		validate: validator.New(),
		now:      opts.Now,
	}, nil
}

// Init opens the local store and creates its tables. Calling it again after
// success is a no-op.
func (c *Collector) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.Ready() {
		return nil
	}

	db, err := storage.NewSQLite(ctx, c.opts.DBPath, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open route store: %w", err)
	}
	if err := db.Migrate(ctx, schemaRoutes, schemaRoutesIndex, schemaSession); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate route store: %w", err)
	}

	// Close may have run while the store was opening; an abandoned Init
	// must not resurrect the collector
	c.dbMu.Lock()
	if c.closed {
		c.dbMu.Unlock()
		_ = db.Close()
		c.logger.Infow("Data collector closed during init, discarding store", "path", c.opts.DBPath)
		return ErrClosed
	}
	c.db = db
	c.dbMu.Unlock()

	c.logger.Infow("Data collector initialized", "path", c.opts.DBPath)
	return nil
}

// Ready reports whether Init has completed
func (c *Collector) Ready() bool {
	c.dbMu.RLock()
	defer c.dbMu.RUnlock()
	return c.db != nil
}

func (c *Collector) store() (*storage.SQLite, error) {
	c.dbMu.RLock()
	defer c.dbMu.RUnlock()
	if c.db == nil {
		return nil, ErrNotReady
	}
	return c.db, nil
}

// Close releases the local store. A later or in-flight Init fails with
// ErrClosed.
func (c *Collector) Close() error {
	c.dbMu.Lock()
	defer c.dbMu.Unlock()
	c.closed = true
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// CheckSyncEligibility reports whether the current network conditions allow
// an upload. force bypasses every check.
func (c *Collector) CheckSyncEligibility(force bool) bool {
	if force {
		return true
	}
	if !c.online() {
		return false
	}
	if c.opts.SaveData {
		return false
	}
	if c.opts.Status != nil && c.opts.Status.SaveData() {
		return false
	}
	return true
}

func (c *Collector) online() bool {
	if c.opts.Status == nil {
		return true
	}
	return c.opts.Status.Online()
}

// BreakerState exposes the upload circuit breaker state
func (c *Collector) BreakerState() core.CircuitBreakerState {
	return c.breaker.State()
}
