package fetcher

import (
	"sync"
	"time"
)

// BreakerState is the current circuit breaker state.
type BreakerState string

const (
	// StateClosed allows all requests.
	StateClosed BreakerState = "closed"

	// StateOpen blocks all requests until the recovery timeout expires.
	StateOpen BreakerState = "open"

	// StateHalfOpen allows probe requests to test recovery.
	StateHalfOpen BreakerState = "half-open"
)

// halfOpenSuccesses is the number of consecutive successes required to
// close a half-open circuit.
const halfOpenSuccesses = 3

// Breaker implements a circuit breaker around an endpoint. After
// failureThreshold consecutive failures the circuit opens and requests
// fail fast; once recoveryTimeout has passed the circuit goes half-open
// and probe requests decide whether it closes again.
type Breaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration

	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 10
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

// Allow reports whether a request may proceed, transitioning an open
// circuit to half-open once the recovery timeout has expired.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	}
	return true
}

// Success records a successful request.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= halfOpenSuccesses {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

// Failure records a failed request, opening the circuit when the
// threshold is reached. A failure in half-open state re-opens
// immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.failures = b.failureThreshold
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastFailure = time.Time{}
}
