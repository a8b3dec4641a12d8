package queue

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects events in delivery order
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	kind  Event
	item  Item[string]
	extra any
}

func (r *recorder) attach(bus *Bus[string]) {
	for _, kind := range Events {
		kind := kind
		bus.On(kind, Listen(func(item Item[string], extra any) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, recordedEvent{kind: kind, item: item, extra: extra})
			return nil
		}))
	}
}

func (r *recorder) kinds() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func (r *recorder) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestQueue creates a string queue on a fake clock
func newTestQueue(opts ...Option) (*Queue[string], *fakeClock) {
	clock := newFakeClock()
	base := []Option{WithClock(clock.Now), WithLogger(discardLogger())}
	return New[string](append(base, opts...)...), clock
}
