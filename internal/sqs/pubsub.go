package sqs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// subscription represents a single subscriber channel with its filter.
type subscription struct {
	ch     chan *core.RetryEvent
	filter func(*core.RetryEvent) bool
}

// PubSubBroker implements core.EventPublisher using in-memory fan-out so
// the SSE endpoint can stream decisions as they are made.
type PubSubBroker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewPubSubBroker creates a new in-memory PubSubBroker.
func NewPubSubBroker() *PubSubBroker {
	return &PubSubBroker{
		subs: make(map[*subscription]struct{}),
	}
}

// PublishRetryEvent publishes an event to all matching subscribers. Slow
// subscribers miss events rather than block the publisher.
func (b *PubSubBroker) PublishRetryEvent(_ context.Context, event *core.RetryEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter == nil || sub.filter(event) {
			select {
			case sub.ch <- event:
			default:
				slog.Warn("dropping event, subscriber channel full",
					"job_id", event.JobID, "event", event.Type)
			}
		}
	}
	return nil
}

// SubscribeJob subscribes to events for a specific job.
func (b *PubSubBroker) SubscribeJob(jobID string) (<-chan *core.RetryEvent, func()) {
	return b.subscribe(func(e *core.RetryEvent) bool {
		return e.JobID == jobID
	})
}

// SubscribeQueue subscribes to events for all jobs in a queue.
func (b *PubSubBroker) SubscribeQueue(queue string) (<-chan *core.RetryEvent, func()) {
	return b.subscribe(func(e *core.RetryEvent) bool {
		return e.Queue == queue
	})
}

// SubscribeAll subscribes to all events.
func (b *PubSubBroker) SubscribeAll() (<-chan *core.RetryEvent, func()) {
	return b.subscribe(nil)
}

func (b *PubSubBroker) subscribe(filter func(*core.RetryEvent) bool) (<-chan *core.RetryEvent, func()) {
	ch := make(chan *core.RetryEvent, 64)
	sub := &subscription{ch: ch, filter: filter}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(ch)
			}
		})
	}

	return ch, unsubscribe
}

// Subscribers returns the number of active subscriptions.
func (b *PubSubBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down the broker and closes all subscriber channels.
func (b *PubSubBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*subscription]struct{})
	return nil
}
