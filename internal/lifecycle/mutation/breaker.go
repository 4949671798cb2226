package mutation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mjones3/exception-collector/internal/lifecycle/metrics"
)

// BreakerState is the circuit breaker state for one operation.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Calls pass through
	BreakerHalfOpen                     // One probe call allowed
	BreakerOpen                         // Calls short-circuit
)

// Breaker is a consecutive-failure circuit breaker. After threshold
// consecutive infrastructure failures it opens; once the cooldown elapses a
// single probe is let through, and its outcome decides between closing and
// re-opening.
type Breaker struct {
	mu sync.Mutex

	name      string
	threshold int
	cooldown  time.Duration

	state         BreakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a closed breaker for the named operation.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	b := &Breaker{name: name, threshold: threshold, cooldown: cooldown}
	b.export()
	return b
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		b.export()
		slog.Info("Circuit breaker half-open", "operation", b.name)
		return true
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess notes a successful call, closing the breaker from half-open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	if b.state != BreakerClosed {
		slog.Info("Circuit breaker closed", "operation", b.name)
	}
	b.state = BreakerClosed
	b.export()
}

// RecordFailure notes an infrastructure failure; crossing the threshold
// opens the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.export()
		slog.Warn("Circuit breaker re-opened", "operation", b.name)
		return
	}

	b.failures++
	if b.failures >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.export()
		slog.Warn("Circuit breaker opened", "operation", b.name, "consecutiveFailures", b.failures)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) export() {
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(b.state))
}
