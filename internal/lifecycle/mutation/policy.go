package mutation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mjones3/exception-collector/internal/infra/storage"
)

// PolicyConfig defines the transient-fault behavior wrapped around one
// logical operation: bounded retry with exponential backoff, a timeout
// ceiling, and circuit breaker thresholds. This is the infrastructure retry,
// distinct from the business retry on an exception.
type PolicyConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	BackoffMultiple  float64       `yaml:"backoff_multiple"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// DefaultPolicyConfig provides sensible defaults.
var DefaultPolicyConfig = PolicyConfig{
	MaxAttempts:      3,
	InitialDelay:     100 * time.Millisecond,
	MaxDelay:         2 * time.Second,
	BackoffMultiple:  2.0,
	Timeout:          10 * time.Second,
	BreakerThreshold: 5,
	BreakerCooldown:  30 * time.Second,
}

// ErrBreakerOpen is returned when the circuit breaker short-circuits a call.
var ErrBreakerOpen = errors.New("circuit breaker open")

// IsInfrastructureError reports whether an error is a transient
// infrastructure failure eligible for backoff retry. Business and
// concurrency sentinels are never retried: resubmission is the caller's
// decision.
func IsInfrastructureError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, storage.ErrPendingAttemptExists),
		errors.Is(err, storage.ErrNoAttempts),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Policy composes a circuit breaker with bounded backoff retry for one
// logical operation name. Breaker state is process-wide per operation, not
// per caller.
type Policy struct {
	name    string
	cfg     PolicyConfig
	breaker *Breaker
}

// NewPolicy creates a policy for the given operation name.
func NewPolicy(name string, cfg PolicyConfig) *Policy {
	return &Policy{
		name:    name,
		cfg:     cfg,
		breaker: NewBreaker(name, cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Execute runs fn under the policy. Infrastructure errors are retried with
// exponential backoff up to the attempt ceiling; business errors pass
// through untouched on the first occurrence. The timeout ceiling covers the
// whole call including retries.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.breaker.Allow() {
		return ErrBreakerOpen
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			p.breaker.RecordSuccess()
			return nil
		}

		if !IsInfrastructureError(err) {
			// Business outcome, not a downstream fault: the breaker
			// only protects against infrastructure failure.
			p.breaker.RecordSuccess()
			return err
		}

		lastErr = err
		if attempt == p.cfg.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, p.cfg)
		select {
		case <-ctx.Done():
			p.breaker.RecordFailure()
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	p.breaker.RecordFailure()
	return fmt.Errorf("%s failed after %d attempts: %w", p.name, p.cfg.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, cfg PolicyConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
