package reliability

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the wrapped call while the
// breaker is open or a half-open trial is already in flight.
var ErrCircuitOpen = errors.New("reliability: circuit breaker open")

// BreakerState is the current state of a CircuitBreaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast after failureThreshold consecutive failures.
// While open every call is rejected immediately. Once openTimeout has
// elapsed a single trial call goes through: success closes the breaker,
// failure re-opens it and restarts the timeout.
type CircuitBreaker struct {
	failureThreshold int
	openTimeout      time.Duration

	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastFailure   time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		state:            StateClosed,
	}
}

// State returns the current state, promoting open to half-open when the
// timeout has elapsed.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.openTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Do runs fn through the breaker. Returns ErrCircuitOpen without calling
// fn when the breaker rejects, otherwise the error from fn itself.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.openTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trialInFlight = true
		return nil
	case StateHalfOpen:
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
		if err != nil {
			cb.state = StateOpen
			cb.lastFailure = time.Now()
			cb.failures = cb.failureThreshold
		} else {
			cb.state = StateClosed
			cb.failures = 0
		}
		return
	}

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
		}
		return
	}
	cb.failures = 0
}
