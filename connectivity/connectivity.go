// Package connectivity reports host network status changes to the client.
//
// The host environment (a browser shell, a mobile wrapper, or the Prober in
// this package) publishes Events; the bootstrap watcher subscribes once and
// turns them into background sync requests.
package connectivity

import (
	"sync"

	"balgil/metrics"
)

// Kind classifies a connectivity event
type Kind string

const (
	// Online is published on an offline -> online transition
	Online Kind = "online"
	// Offline is published on an online -> offline transition
	Offline Kind = "offline"
	// TypeChange is published when the network type changes (wifi <-> cellular)
	TypeChange Kind = "type_change"
	// Foreground is published when the app returns to the foreground
	Foreground Kind = "foreground"
)

// Event is a single connectivity notification
type Event struct {
	Kind Kind
	// NetworkType is set for TypeChange events ("wifi", "4g", ...)
	NetworkType string
}

// Signal is the subscription surface the bootstrap watcher depends on
type Signal interface {
	// Subscribe registers fn and returns a function that removes it
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Status reports the host's current connectivity. The data collector
// consults it before every sync.
type Status interface {
	Online() bool
	SaveData() bool
}

// Broadcaster fans events out to subscribers. Repeated Online or Offline
// events without a transition in between are dropped.
type Broadcaster struct {
	mu       sync.RWMutex
	online   bool
	saveData bool
	nextID   int
	subs     map[int]func(Event)
}

// NewBroadcaster creates a broadcaster with the given initial status
func NewBroadcaster(online bool) *Broadcaster {
	return &Broadcaster{online: online, subs: make(map[int]func(Event))}
}

// Subscribe registers fn; it is called synchronously from Publish
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish updates status for Online/Offline events and delivers e to every
// subscriber. It reports whether the event was delivered.
func (b *Broadcaster) Publish(e Event) bool {
	b.mu.Lock()
	switch e.Kind {
	case Online:
		if b.online {
			b.mu.Unlock()
			return false
		}
		b.online = true
	case Offline:
		if !b.online {
			b.mu.Unlock()
			return false
		}
		b.online = false
	}
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	metrics.ConnectivityEvents.WithLabelValues(string(e.Kind)).Inc()
	for _, fn := range subs {
		fn(e)
	}
	return true
}

// SetOnline publishes Online or Offline
func (b *Broadcaster) SetOnline(online bool) bool {
	if online {
		return b.Publish(Event{Kind: Online})
	}
	return b.Publish(Event{Kind: Offline})
}

// Online reports the last published status
func (b *Broadcaster) Online() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

// SetSaveData records the host's data-saver preference
func (b *Broadcaster) SetSaveData(v bool) {
	b.mu.Lock()
	b.saveData = v
	b.mu.Unlock()
}

// SaveData reports whether the host asked to reduce data usage
func (b *Broadcaster) SaveData() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saveData
}

// Subscribers returns the number of active subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
