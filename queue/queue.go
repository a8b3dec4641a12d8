// Package queue implements an in-memory, priority ordered work queue whose
// items move through pending, processing, completed and failed states, with
// bounded retries and lifecycle events delivered through a per-queue Bus.
package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/errors"
	"github.com/google/uuid"
)

type queuedEvent[T any] struct {
	kind  Event
	item  Item[T]
	extra any
}

// Queue is a concurrency safe work queue. Claiming is an atomic
// check-and-transition, so an item is held by at most one claimant.
type Queue[T any] struct {
	mu     sync.Mutex
	items  map[string]*Item[T]
	seq    uint64
	config *Config
	bus    *Bus[T]
	logger *slog.Logger

	// outbox holds events recorded under mu; a single flusher drains it so
	// listeners observe transitions in the order they happened.
	outbox   []queuedEvent[T]
	flushing bool
}

// New creates an empty queue
func New[T any](options ...Option) *Queue[T] {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue[T]{
		items:  make(map[string]*Item[T]),
		config: config,
		bus:    NewBus[T](logger),
		logger: logger,
	}
}

// Events returns the queue's event bus
func (q *Queue[T]) Events() *Bus[T] {
	return q.bus
}

// Now reads the queue's clock
func (q *Queue[T]) Now() time.Time {
	return q.config.Clock()
}

// MaxAttempts returns the configured retry budget
func (q *Queue[T]) MaxAttempts() int {
	return q.config.MaxAttempts
}

// Enqueue adds a pending item and emits EventAdded
func (q *Queue[T]) Enqueue(data T, priority int) Item[T] {
	q.mu.Lock()
	now := q.config.Clock()
	q.seq++
	item := &Item[T]{
		ID:        uuid.NewString(),
		Data:      data,
		Status:    StatusPending,
		Priority:  priority,
		AddedAt:   now,
		UpdatedAt: now,
		seq:       q.seq,
	}
	q.items[item.ID] = item
	snapshot := *item
	q.record(EventAdded, snapshot, nil)
	q.mu.Unlock()

	q.flush()
	return snapshot
}

// ClaimNext moves the highest priority eligible item to processing and
// returns it. Ties go to the earliest enqueued item.
func (q *Queue[T]) ClaimNext() (Item[T], bool) {
	q.mu.Lock()
	best := q.selectLocked(q.config.Clock())
	if best == nil {
		q.mu.Unlock()
		return Item[T]{}, false
	}

	best.Status = StatusProcessing
	best.UpdatedAt = q.config.Clock()
	snapshot := *best
	q.record(EventProcessing, snapshot, nil)
	q.mu.Unlock()

	q.flush()
	return snapshot, true
}

// Peek returns the item ClaimNext would select, without claiming it
func (q *Queue[T]) Peek() (Item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	best := q.selectLocked(q.config.Clock())
	if best == nil {
		return Item[T]{}, false
	}
	return *best, true
}

// Complete marks a processing item as completed
func (q *Queue[T]) Complete(id string) error {
	q.mu.Lock()
	item, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return errors.ItemNotFound(id)
	}
	if item.Status != StatusProcessing {
		from := item.Status
		q.mu.Unlock()
		return errors.NewStateError(id, string(from), string(StatusCompleted))
	}

	item.Status = StatusCompleted
	item.UpdatedAt = q.config.Clock()
	snapshot := *item
	q.record(EventCompleted, snapshot, nil)
	q.mu.Unlock()

	q.flush()
	return nil
}

// Fail records a failed attempt. A retryable failure of a processing item
// with budget left returns it to pending after a backoff delay; anything else
// moves it to failed. Failing a pending item cancels it.
func (q *Queue[T]) Fail(id string, cause error, retryable bool) error {
	q.mu.Lock()
	item, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return errors.ItemNotFound(id)
	}

	now := q.config.Clock()
	switch item.Status {
	case StatusProcessing:
	case StatusPending:
		retryable = false
	default:
		from := item.Status
		q.mu.Unlock()
		return errors.NewStateError(id, string(from), string(StatusFailed))
	}

	if cause != nil {
		item.LastError = cause.Error()
	}
	item.UpdatedAt = now

	var kind Event
	if retryable && item.Attempt < q.config.MaxAttempts {
		delay := q.config.Backoff.Delay(item.Attempt)
		item.Attempt++
		item.Status = StatusPending
		item.NotBefore = now.Add(delay)
		kind = EventRetrying
	} else {
		item.Status = StatusFailed
		kind = EventFailed
	}

	snapshot := *item
	q.record(kind, snapshot, cause)
	q.mu.Unlock()

	if kind == EventRetrying {
		q.logger.Debug("Item scheduled for retry",
			"item", id, "attempt", snapshot.Attempt, "not_before", snapshot.NotBefore)
	}

	q.flush()
	return nil
}

// Remove stops tracking an item. Items being processed can only be
// finished by their claimant.
func (q *Queue[T]) Remove(id string) error {
	q.mu.Lock()
	item, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return errors.ItemNotFound(id)
	}
	if item.Status == StatusProcessing {
		q.mu.Unlock()
		return errors.NewStateError(id, string(StatusProcessing), "removed")
	}

	delete(q.items, id)
	q.record(EventRemoved, *item, nil)
	q.mu.Unlock()

	q.flush()
	return nil
}

// Get returns a copy of the tracked item with the given id
func (q *Queue[T]) Get(id string) (Item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return Item[T]{}, false
	}
	return *item, true
}

// Len returns the number of tracked items in any state
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Counts returns the number of tracked items per status
func (q *Queue[T]) Counts() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := map[Status]int{
		StatusPending:    0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for _, item := range q.items {
		counts[item.Status]++
	}
	return counts
}

// NextEligible returns the earliest time a pending item that is still
// backing off becomes claimable
func (q *Queue[T]) NextEligible() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.config.Clock()
	var next time.Time
	found := false
	for _, item := range q.items {
		if item.Status != StatusPending || !item.NotBefore.After(now) {
			continue
		}
		if !found || item.NotBefore.Before(next) {
			next = item.NotBefore
			found = true
		}
	}
	return next, found
}

// selectLocked finds the best claimable item. Caller must hold mu.
func (q *Queue[T]) selectLocked(now time.Time) *Item[T] {
	var best *Item[T]
	for _, item := range q.items {
		if !item.eligible(now) {
			continue
		}
		if best == nil || item.before(best) {
			best = item
		}
	}
	return best
}

// record queues an event for delivery. Caller must hold mu.
func (q *Queue[T]) record(kind Event, item Item[T], extra any) {
	q.outbox = append(q.outbox, queuedEvent[T]{kind: kind, item: item, extra: extra})
}

// flush delivers recorded events. Only one goroutine drains at a time;
// others return immediately and their events are picked up by the drainer.
func (q *Queue[T]) flush() {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return
	}
	q.flushing = true

	for len(q.outbox) > 0 {
		batch := q.outbox
		q.outbox = nil
		q.mu.Unlock()

		for _, ev := range batch {
			q.bus.Emit(ev.kind, ev.item, ev.extra)
		}

		q.mu.Lock()
	}

	q.flushing = false
	q.mu.Unlock()
}
