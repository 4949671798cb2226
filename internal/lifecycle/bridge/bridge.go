package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
)

const (
	ChannelExceptionUpdates    = "exception_updates"
	ChannelRetryStatus         = "retry_status"
	ChannelMutationCompletions = "mutation_completions"
	ChannelDashboard           = "dashboard"
)

// Config sizes the per-subscriber buffers and paces the dashboard aggregate.
type Config struct {
	BufferSize        int           `yaml:"buffer_size"`
	DashboardInterval time.Duration `yaml:"dashboard_interval"`
}

// Bridge owns the four broadcast channels that carry lifecycle events from
// the mutation side to subscribers. It also runs the dashboard aggregator,
// which recomputes the summary on a timer and on demand after mutations.
type Bridge struct {
	updates    *Broadcast[domain.ExceptionUpdateEvent]
	retries    *Broadcast[domain.RetryStatusEvent]
	mutations  *Broadcast[domain.MutationCompletionEvent]
	dashboard  *Broadcast[domain.DashboardSummary]
	exceptions storage.ExceptionRepository
	attempts   storage.AttemptRepository
	interval   time.Duration
	refresh    chan struct{}
}

func NewBridge(cfg Config, exceptions storage.ExceptionRepository, attempts storage.AttemptRepository) *Bridge {
	interval := cfg.DashboardInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Bridge{
		updates:    NewBroadcast[domain.ExceptionUpdateEvent](ChannelExceptionUpdates, cfg.BufferSize),
		retries:    NewBroadcast[domain.RetryStatusEvent](ChannelRetryStatus, cfg.BufferSize),
		mutations:  NewBroadcast[domain.MutationCompletionEvent](ChannelMutationCompletions, cfg.BufferSize),
		dashboard:  NewBroadcast[domain.DashboardSummary](ChannelDashboard, cfg.BufferSize),
		exceptions: exceptions,
		attempts:   attempts,
		interval:   interval,
		refresh:    make(chan struct{}, 1),
	}
}

func (b *Bridge) PublishExceptionUpdate(event domain.ExceptionUpdateEvent) {
	b.updates.Publish(event)
}

func (b *Bridge) PublishRetryStatus(event domain.RetryStatusEvent) {
	b.retries.Publish(event)
}

func (b *Bridge) PublishMutationCompletion(event domain.MutationCompletionEvent) {
	b.mutations.Publish(event)
}

// TriggerDashboardUpdate requests an out-of-band summary recompute. The
// request channel holds one slot; coalescing bursts into a single refresh.
func (b *Bridge) TriggerDashboardUpdate() {
	select {
	case b.refresh <- struct{}{}:
	default:
	}
}

// ExceptionUpdates exposes the update channel for the subscription layer.
func (b *Bridge) ExceptionUpdates() *Broadcast[domain.ExceptionUpdateEvent] { return b.updates }

// RetryStatus exposes the retry status channel.
func (b *Bridge) RetryStatus() *Broadcast[domain.RetryStatusEvent] { return b.retries }

// MutationCompletions exposes the mutation completion channel.
func (b *Bridge) MutationCompletions() *Broadcast[domain.MutationCompletionEvent] { return b.mutations }

// Dashboard exposes the dashboard summary channel.
func (b *Bridge) Dashboard() *Broadcast[domain.DashboardSummary] { return b.dashboard }

// Run drives the dashboard aggregator until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	slog.Info("Dashboard aggregator started", "interval", b.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-b.refresh:
		}
		summary, err := b.computeSummary(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Dashboard summary computation failed", "error", err)
			continue
		}
		b.dashboard.Publish(summary)
	}
}

func (b *Bridge) computeSummary(ctx context.Context) (domain.DashboardSummary, error) {
	byStatus, err := b.exceptions.CountByStatus(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	bySeverity, err := b.exceptions.CountBySeverity(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	byInterface, err := b.exceptions.CountByInterfaceType(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	totalRetries, succeeded, err := b.attempts.CountRetries(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	var active int64
	for status, n := range byStatus {
		if status != domain.StatusResolved && status != domain.StatusClosed {
			active += n
		}
	}
	rate := 0.0
	if totalRetries > 0 {
		rate = float64(succeeded) / float64(totalRetries)
	}
	return domain.DashboardSummary{
		TotalByStatus:        byStatus,
		TotalBySeverity:      bySeverity,
		TotalByInterfaceType: byInterface,
		ActiveExceptions:     active,
		TotalRetries:         totalRetries,
		SucceededRetries:     succeeded,
		RetrySuccessRate:     rate,
		UpdatedAt:            time.Now(),
	}, nil
}

// Close tears down every channel; subscribers see their channels closed.
func (b *Bridge) Close() {
	b.updates.Close()
	b.retries.Close()
	b.mutations.Close()
	b.dashboard.Close()
}
