package bridge

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mjones3/exception-collector/internal/lifecycle/metrics"
)

// Broadcast fans one event stream out to any number of subscribers, each
// with its own bounded buffer. Publish never blocks: when a subscriber's
// buffer is full its oldest event is discarded to make room, so a slow
// consumer only ever loses its own history.
type Broadcast[T any] struct {
	mu          sync.RWMutex
	name        string
	bufferSize  int
	subscribers map[string]chan T
	closed      bool
}

func NewBroadcast[T any](name string, bufferSize int) *Broadcast[T] {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broadcast[T]{
		name:        name,
		bufferSize:  bufferSize,
		subscribers: make(map[string]chan T),
	}
}

// Subscribe registers a new consumer and returns its id and receive channel.
// The channel is closed by Unsubscribe or Close, never by the consumer.
func (b *Broadcast[T]) Subscribe() (string, <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan T, b.bufferSize)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	metrics.ActiveSubscriptions.WithLabelValues(b.name).Set(float64(len(b.subscribers)))
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel. Unknown ids are
// ignored so callers can unsubscribe defensively.
func (b *Broadcast[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)
	metrics.ActiveSubscriptions.WithLabelValues(b.name).Set(float64(len(b.subscribers)))
}

// Publish delivers the event to every subscriber without blocking.
func (b *Broadcast[T]) Publish(event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		for {
			select {
			case ch <- event:
			default:
				// Buffer full: evict the oldest event and retry. The
				// inner receive can race with the consumer, hence the loop.
				select {
				case <-ch:
					metrics.EventsDroppedTotal.WithLabelValues(b.name).Inc()
					slog.Warn("Dropped oldest event for slow subscriber", "channel", b.name)
				default:
				}
				continue
			}
			break
		}
	}
	metrics.EventsPublishedTotal.WithLabelValues(b.name).Inc()
}

// Len reports the current subscriber count.
func (b *Broadcast[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel and rejects further publishes.
func (b *Broadcast[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	metrics.ActiveSubscriptions.WithLabelValues(b.name).Set(0)
}
