package queue

import "time"

// Status is the lifecycle state of a queue item
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is a unit of work tracked by a Queue. Items handed out by the queue are
// copies; mutating one does not affect the queue.
type Item[T any] struct {
	ID        string
	Data      T
	Status    Status
	Priority  int
	AddedAt   time.Time
	UpdatedAt time.Time
	// NotBefore is the earliest time a retried item may be claimed again.
	NotBefore time.Time
	Attempt   int
	LastError string

	seq uint64
}

// eligible reports whether the item can be claimed at now
func (i *Item[T]) eligible(now time.Time) bool {
	return i.Status == StatusPending && !now.Before(i.NotBefore)
}

// before orders items for claiming: higher priority first, then insertion order.
func (i *Item[T]) before(other *Item[T]) bool {
	if i.Priority != other.Priority {
		return i.Priority > other.Priority
	}
	return i.seq < other.seq
}
