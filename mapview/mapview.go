// Package mapview holds the main map's viewport.
package mapview

import (
	"context"
	"fmt"
	"sync"

	"balgil/core"

	"go.uber.org/zap"
)

const (
	DefaultZoom = 16
	MinZoom     = 0
	MaxZoom     = 22

	// DetailZoom is used when focusing on a single position
	DetailZoom = 18
)

// DefaultCenter is Seoul City Hall
var DefaultCenter = core.Point{Lat: 37.5665, Lon: 126.9780}

// View is the map viewport
type View struct {
	Center core.Point `json:"center"`
	Zoom   int        `json:"zoom"`
}

// Manager is the map subsystem
type Manager struct {
	logger *zap.SugaredLogger
	home   View

	mu          sync.RWMutex
	initialized bool
	view        View
}

// NewManager creates a manager that will open at center and zoom
func NewManager(center core.Point, zoom int, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{logger: logger, home: View{Center: center, Zoom: zoom}}
}

// Init sets up the viewport at its home position. Later calls keep the
// current view.
func (m *Manager) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if err := validate(m.home); err != nil {
		return fmt.Errorf("invalid map home view: %w", err)
	}

	m.view = m.home
	m.initialized = true
	m.logger.Infow("Map initialized",
		"lat", m.view.Center.Lat,
		"lon", m.view.Center.Lon,
		"zoom", m.view.Zoom)
	return nil
}

// Initialized reports whether Init has succeeded
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// View returns the current viewport
func (m *Manager) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// FocusOn centers the map on p at DetailZoom
func (m *Manager) FocusOn(p core.Point) error {
	next := View{Center: p, Zoom: DetailZoom}
	if err := validate(next); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return fmt.Errorf("map not initialized")
	}
	m.view = next
	return nil
}

func validate(v View) error {
	if v.Center.Lat < -90 || v.Center.Lat > 90 || v.Center.Lon < -180 || v.Center.Lon > 180 {
		return fmt.Errorf("center out of range: %f,%f", v.Center.Lat, v.Center.Lon)
	}
	if v.Zoom < MinZoom || v.Zoom > MaxZoom {
		return fmt.Errorf("zoom %d out of range", v.Zoom)
	}
	return nil
}
