// Package social keeps the map's nearby message feed.
//
// Messages are fetched from the server in the background when the client
// starts and held in a bounded LRU cache. When the server cannot be reached
// the last successful fetch, persisted in settings, is used instead.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"balgil/core"
	"balgil/metrics"
	"balgil/storage"
	"balgil/util/goroutine"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Message is a location-pinned post. Coords is [lon, lat].
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Coords    []float64 `json:"coords"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Shares    int       `json:"shares"`
	Timestamp int64     `json:"timestamp"`
}

// Options configures a Manager
type Options struct {
	// ServerURL is the API origin; empty means cache only
	ServerURL  string
	HTTPClient *http.Client
	// Settings persists the last fetched feed; may be nil
	Settings  storage.SettingsStore
	CacheSize int
	Logger    *zap.SugaredLogger
}

// Manager is the social subsystem
type Manager struct {
	opts   Options
	logger *zap.SugaredLogger
	cache  *lru.Cache[string, Message]

	initOnce sync.Once
	loaded   chan struct{}
}

// NewManager creates a manager with an empty cache
func NewManager(opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 500
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	cache, err := lru.New[string, Message](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create message cache: %w", err)
	}

	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		cache:  cache,
		loaded: make(chan struct{}),
	}, nil
}

// Init starts loading messages in the background and returns immediately.
// Only the first call has any effect.
func (m *Manager) Init(ctx context.Context) error {
	m.initOnce.Do(func() {
		loadCtx := context.WithoutCancel(ctx)
		goroutine.Go("social-loader", m.logger, func() error {
			defer close(m.loaded)
			_, err := m.LoadMessages(loadCtx)
			return err
		})
	})
	return nil
}

// Loaded is closed once the background load started by Init has finished
func (m *Manager) Loaded() <-chan struct{} {
	return m.loaded
}

// LoadMessages refreshes the cache from the server, falling back to the
// persisted feed. It reports whether the server answered. An error is
// returned only when neither source produced anything.
func (m *Manager) LoadMessages(ctx context.Context) (bool, error) {
	msgs, fetchErr := m.fetch(ctx)
	if fetchErr == nil {
		m.replace(msgs)
		m.persist(ctx, msgs)
		m.logger.Infow("Messages loaded", "count", len(msgs))
		return true, nil
	}

	m.logger.Warnw("Message fetch failed, using saved feed", "error", fetchErr)
	cached, err := m.loadPersisted(ctx)
	if err != nil {
		return false, fmt.Errorf("no messages available: %w", fetchErr)
	}
	m.replace(cached)
	return false, nil
}

// Messages returns cached messages, newest first
func (m *Manager) Messages() []Message {
	out := m.cache.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// Nearby returns cached messages within radius meters of center, newest first
func (m *Manager) Nearby(center core.Point, radius float64) []Message {
	var out []Message
	for _, msg := range m.Messages() {
		if len(msg.Coords) != 2 {
			continue
		}
		p := core.Point{Lon: msg.Coords[0], Lat: msg.Coords[1]}
		if core.Distance(center, p) <= radius {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Manager) fetch(ctx context.Context) ([]Message, error) {
	if m.opts.ServerURL == "" {
		return nil, fmt.Errorf("no server configured")
	}

	endpoint := strings.TrimRight(m.opts.ServerURL, "/") + "/api/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("server error: %s", resp.Status)
	}

	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return msgs, nil
}

func (m *Manager) replace(msgs []Message) {
	m.cache.Purge()
	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		m.cache.Add(msg.ID, msg)
	}
	metrics.SocialMessagesLoaded.Set(float64(m.cache.Len()))
}

func (m *Manager) persist(ctx context.Context, msgs []Message) {
	if m.opts.Settings == nil {
		return
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := m.opts.Settings.Set(ctx, storage.KeyMessages, string(data)); err != nil {
		m.logger.Warnw("Failed to persist message feed", "error", err)
	}
}

func (m *Manager) loadPersisted(ctx context.Context) ([]Message, error) {
	if m.opts.Settings == nil {
		return nil, fmt.Errorf("no settings store")
	}
	raw, ok, err := m.opts.Settings.Get(ctx, storage.KeyMessages)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no saved feed")
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("saved feed unreadable: %w", err)
	}
	return msgs, nil
}
