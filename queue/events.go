package queue

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event identifies a queue lifecycle notification
type Event string

const (
	EventAdded      Event = "item:added"
	EventProcessing Event = "item:processing"
	EventCompleted  Event = "item:completed"
	EventRetrying   Event = "item:retrying"
	EventFailed     Event = "item:failed"
	EventRemoved    Event = "item:removed"
)

// Events lists every event a Queue emits, in lifecycle order
var Events = []Event{
	EventAdded,
	EventProcessing,
	EventCompleted,
	EventRetrying,
	EventFailed,
	EventRemoved,
}

// HandlerFunc receives the item an event refers to plus optional extra data
type HandlerFunc[T any] func(item Item[T], extra any) error

// Listener is a registered handler. Its pointer is its identity, which is
// what Off matches against.
type Listener[T any] struct {
	fn HandlerFunc[T]
}

// Listen wraps fn so it can be registered on a Bus and later removed
func Listen[T any](fn HandlerFunc[T]) *Listener[T] {
	return &Listener[T]{fn: fn}
}

// Bus is a publish/subscribe registry keyed by event kind
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[Event][]*Listener[T]
	logger   *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default().
func NewBus[T any](logger *slog.Logger) *Bus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[T]{
		handlers: make(map[Event][]*Listener[T]),
		logger:   logger,
	}
}

// On registers l for kind. Registering the same listener twice delivers twice.
func (b *Bus[T]) On(kind Event, l *Listener[T]) *Bus[T] {
	if l == nil || l.fn == nil {
		return b
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[kind] = append(b.handlers[kind], l)
	return b
}

// Off removes every registration of l for kind
func (b *Bus[T]) Off(kind Event, l *Listener[T]) *Bus[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.handlers[kind]
	if !ok {
		return b
	}

	kept := make([]*Listener[T], 0, len(current))
	for _, h := range current {
		if h != l {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, kind)
	} else {
		b.handlers[kind] = kept
	}
	return b
}

// Emit invokes every handler registered for kind, in registration order.
// Handler errors and panics are logged and never reach the caller.
func (b *Bus[T]) Emit(kind Event, item Item[T], extra any) {
	b.mu.RLock()
	snapshot := append([]*Listener[T](nil), b.handlers[kind]...)
	b.mu.RUnlock()

	for _, l := range snapshot {
		if err := b.invoke(l, item, extra); err != nil {
			b.logger.Error("Event handler failed",
				"event", string(kind), "item", item.ID, "error", err)
		}
	}
}

// ClearEvent removes all handlers for kind
func (b *Bus[T]) ClearEvent(kind Event) *Bus[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, kind)
	return b
}

// ClearAllEvents removes every handler
func (b *Bus[T]) ClearAllEvents() *Bus[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[Event][]*Listener[T])
	return b
}

// Len returns the number of registrations for kind
func (b *Bus[T]) Len(kind Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[kind])
}

// invoke runs one handler with panic recovery
func (b *Bus[T]) invoke(l *Listener[T], item Item[T], extra any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return l.fn(item, extra)
}
