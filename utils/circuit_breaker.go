package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker is refusing calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// CircuitBreaker guards a flaky downstream (the mail provider) so repeated
// failures stop hammering it. Closed until the failure ratio trips, open for
// the timeout, then half-open to probe.
type CircuitBreaker struct {
	name         string
	minRequests  uint32
	timeout      time.Duration
	failureRatio float64

	mu        sync.Mutex
	state     BreakerState
	requests  uint32
	failures  uint32
	openUntil time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		minRequests:  10,
		timeout:      60 * time.Second,
		failureRatio: 0.6,
		state:        BreakerClosed,
	}
}

// Do runs fn unless the breaker is open.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()
	cb.after(err == nil)
	return err
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if time.Now().Before(cb.openUntil) {
			return ErrBreakerOpen
		}
		cb.state = BreakerHalfOpen
		cb.requests = 0
		cb.failures = 0
	}

	cb.requests++
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		if cb.state == BreakerHalfOpen {
			cb.state = BreakerClosed
			cb.requests = 0
			cb.failures = 0
		}
		return
	}

	cb.failures++

	if cb.state == BreakerHalfOpen {
		cb.trip()
		return
	}
	if cb.requests >= cb.minRequests &&
		float64(cb.failures)/float64(cb.requests) >= cb.failureRatio {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openUntil = time.Now().Add(cb.timeout)
	cb.requests = 0
	cb.failures = 0
}
