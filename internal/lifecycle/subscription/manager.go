package subscription

import (
	"errors"
	"sync"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/lifecycle/bridge"
)

// ErrUnauthorized is returned when the caller's roles do not grant the
// requested stream.
var ErrUnauthorized = errors.New("subscription: caller not authorized for this stream")

// Subscription is one live, filtered stream. C is closed when the caller
// invokes Close or the bridge shuts down. Close is idempotent.
type Subscription[T any] struct {
	ID string
	C  <-chan T

	once  sync.Once
	close func()
}

// Close releases the underlying broadcast registration. Safe to call more
// than once and safe to call concurrently with delivery.
func (s *Subscription[T]) Close() {
	s.once.Do(s.close)
}

// Manager authorizes subscribers and attaches them to the bridge channels
// with their filters applied between the raw channel and the caller.
type Manager struct {
	bridge *bridge.Bridge
}

func NewManager(b *bridge.Bridge) *Manager {
	return &Manager{bridge: b}
}

// SubscribeExceptionUpdates opens a filtered exception update stream. Any
// recognized role may subscribe; filtering happens per subscriber so two
// callers with different filters see different slices of the same stream.
func (m *Manager) SubscribeExceptionUpdates(caller domain.Caller, filters Filters) (*Subscription[domain.ExceptionUpdateEvent], error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleOperations, domain.RoleViewer) {
		return nil, ErrUnauthorized
	}
	return attach(m.bridge.ExceptionUpdates(), filters.Matches), nil
}

// SubscribeRetryStatus opens a retry status stream scoped to one
// transaction, or to all transactions when transactionID is empty.
func (m *Manager) SubscribeRetryStatus(caller domain.Caller, transactionID string) (*Subscription[domain.RetryStatusEvent], error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleOperations) {
		return nil, ErrUnauthorized
	}
	match := func(event domain.RetryStatusEvent) bool {
		return transactionID == "" || event.TransactionID == transactionID
	}
	return attach(m.bridge.RetryStatus(), match), nil
}

// SubscribeMutationCompletions opens the mutation completion stream.
// Non-admin callers only see completions they initiated.
func (m *Manager) SubscribeMutationCompletions(caller domain.Caller) (*Subscription[domain.MutationCompletionEvent], error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleOperations) {
		return nil, ErrUnauthorized
	}
	match := func(event domain.MutationCompletionEvent) bool {
		return caller.IsAdmin() || event.PerformedBy == caller.Username
	}
	return attach(m.bridge.MutationCompletions(), match), nil
}

// SubscribeDashboard opens the dashboard summary stream.
func (m *Manager) SubscribeDashboard(caller domain.Caller) (*Subscription[domain.DashboardSummary], error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleOperations, domain.RoleViewer) {
		return nil, ErrUnauthorized
	}
	match := func(domain.DashboardSummary) bool { return true }
	return attach(m.bridge.Dashboard(), match), nil
}

// attach registers with the broadcast and runs the filter between the raw
// channel and the subscriber's channel. The goroutine exits when the raw
// channel closes, which Close triggers via Unsubscribe, or when the done
// signal fires in case it is parked on a send the subscriber abandoned.
func attach[T any](b *bridge.Broadcast[T], match func(T) bool) *Subscription[T] {
	id, raw := b.Subscribe()
	out := make(chan T, cap(raw))
	done := make(chan struct{})

	go func() {
		defer close(out)
		for event := range raw {
			if !match(event) {
				continue
			}
			select {
			case out <- event:
			case <-done:
				return
			}
		}
	}()

	return &Subscription[T]{
		ID: id,
		C:  out,
		close: func() {
			close(done)
			b.Unsubscribe(id)
		},
	}
}
