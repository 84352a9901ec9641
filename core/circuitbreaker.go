package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState string

const (
	// CircuitBreakerStateClosed means uploads pass through normally
	CircuitBreakerStateClosed CircuitBreakerState = "closed"
	// CircuitBreakerStateOpen means uploads are refused without contacting the server
	CircuitBreakerStateOpen CircuitBreakerState = "open"
	// CircuitBreakerStateHalfOpen means a limited number of probe uploads are let through
	CircuitBreakerStateHalfOpen CircuitBreakerState = "half_open"
)

var (
	// ErrCircuitBreakerOpen is returned while the server is considered down
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every probe slot is in flight
	ErrTooManyRequests = errors.New("too many requests")
	// ErrInvalidCircuitBreakerConfig wraps configuration errors
	ErrInvalidCircuitBreakerConfig = errors.New("invalid circuit breaker configuration")
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failed uploads that opens the circuit
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// MaxHalfOpenRequests bounds concurrent probes
	MaxHalfOpenRequests uint32
}

// Validate checks if the circuit breaker configuration is valid
func (c *CircuitBreakerConfig) Validate() error {
	switch {
	case c.MaxFailures == 0:
		return errors.New("MaxFailures must be greater than 0")
	case c.Timeout <= 0:
		return errors.New("Timeout must be greater than 0")
	case c.MaxHalfOpenRequests == 0:
		return errors.New("MaxHalfOpenRequests must be greater than 0")
	}
	return nil
}

// DefaultCircuitBreakerConfig returns the sync upload defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         3,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// BreakerSnapshot is a point-in-time view of a circuit breaker
type BreakerSnapshot struct {
	State    CircuitBreakerState
	Failures uint32
	// RetryAt is when an open circuit starts probing; zero unless open
	RetryAt time.Time
}

// CircuitBreaker stops the collector from hammering an unreachable sync
// server. It opens after MaxFailures consecutive failures and lets probes
// through once Timeout has elapsed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitBreakerState
	failures uint32
	openedAt time.Time
	probes   uint32
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) (*CircuitBreaker, error) {
	return newCircuitBreaker(config, time.Now)
}

func newCircuitBreaker(config CircuitBreakerConfig, now func() time.Time) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCircuitBreakerConfig, err)
	}
	return &CircuitBreaker{config: config, now: now, state: CircuitBreakerStateClosed}, nil
}

// Allow reports whether an upload may proceed. An open circuit whose
// timeout has passed moves to half-open and hands out probe slots.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitBreakerStateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.state = CircuitBreakerStateHalfOpen
		cb.probes = 0
	}

	if cb.state == CircuitBreakerStateHalfOpen {
		if cb.probes >= cb.config.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		cb.probes++
	}
	return nil
}

// RecordSuccess closes the circuit. It returns the old and new state so
// callers can log transitions.
func (cb *CircuitBreaker) RecordSuccess() (oldState, newState CircuitBreakerState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState = cb.state
	cb.failures = 0
	cb.transition(CircuitBreakerStateClosed)
	return oldState, cb.state
}

// RecordFailure counts a failed upload. A failed probe reopens the circuit
// immediately.
func (cb *CircuitBreaker) RecordFailure() (oldState, newState CircuitBreakerState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState = cb.state
	cb.failures++
	if cb.state == CircuitBreakerStateHalfOpen || cb.failures >= cb.config.MaxFailures {
		cb.transition(CircuitBreakerStateOpen)
	}
	return oldState, cb.state
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	if to == CircuitBreakerStateOpen {
		cb.openedAt = cb.now()
	}
	cb.state = to
	cb.probes = 0
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the state, consecutive failures and retry time
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := BreakerSnapshot{State: cb.state, Failures: cb.failures}
	if cb.state == CircuitBreakerStateOpen {
		s.RetryAt = cb.openedAt.Add(cb.config.Timeout)
	}
	return s
}
