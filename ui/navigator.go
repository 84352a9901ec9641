package ui

import (
	"errors"
	"fmt"
	"sync"

	"balgil/core"

	"go.uber.org/zap"
)

// ErrUnknownScreen is returned by ShowScreen for ids the navigator does not know
var ErrUnknownScreen = errors.New("unknown screen")

// Navigator tracks which top-level screen is visible. Exactly one screen is
// active at a time; the client starts on the splash screen.
type Navigator struct {
	mu       sync.RWMutex
	current  core.ScreenID
	history  []core.ScreenID
	onChange []func(from, to core.ScreenID)
	logger   *zap.SugaredLogger
}

// NewNavigator creates a navigator showing the splash screen
func NewNavigator(logger *zap.SugaredLogger) *Navigator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Navigator{
		current: core.ScreenSplash,
		history: []core.ScreenID{core.ScreenSplash},
		logger:  logger,
	}
}

// ShowScreen makes id the active screen
func (n *Navigator) ShowScreen(id core.ScreenID) error {
	if !id.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownScreen, id)
	}

	n.mu.Lock()
	from := n.current
	n.current = id
	n.history = append(n.history, id)
	listeners := append([]func(from, to core.ScreenID){}, n.onChange...)
	n.mu.Unlock()

	n.logger.Infow("Screen shown", "from", from, "to", id)
	for _, fn := range listeners {
		fn(from, id)
	}
	return nil
}

// Current returns the active screen
func (n *Navigator) Current() core.ScreenID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// History returns every screen shown so far, starting with splash
func (n *Navigator) History() []core.ScreenID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]core.ScreenID(nil), n.history...)
}

// OnChange registers fn to run after every ShowScreen
func (n *Navigator) OnChange(fn func(from, to core.ScreenID)) {
	n.mu.Lock()
	n.onChange = append(n.onChange, fn)
	n.mu.Unlock()
}
