package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/BranchIntl/postqueue/queue"
)

// Poller wakes idle workers. It reacts to new and re-queued items on the
// queue's event bus, fires when a backing-off item becomes claimable, and
// otherwise ticks at the poll interval.
type Poller struct {
	queue    *queue.Queue[PublishJob]
	interval time.Duration
	wake     chan<- struct{}
	slots    int
	signal   chan struct{}
}

// NewPoller creates a poller that delivers up to slots wake-ups per round
func NewPoller(q *queue.Queue[PublishJob], interval time.Duration, wake chan<- struct{}, slots int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		queue:    q,
		interval: interval,
		wake:     wake,
		slots:    slots,
		signal:   make(chan struct{}, 1),
	}
}

// Start runs until ctx is done, then closes the wake channel
func (p *Poller) Start(ctx context.Context) error {
	notify := queue.Listen(func(queue.Item[PublishJob], any) error {
		select {
		case p.signal <- struct{}{}:
		default:
		}
		return nil
	})

	bus := p.queue.Events()
	bus.On(queue.EventAdded, notify).On(queue.EventRetrying, notify)
	defer func() {
		bus.Off(queue.EventAdded, notify).Off(queue.EventRetrying, notify)
	}()

	slog.Info("Poller started", "interval", p.interval)

	timer := time.NewTimer(p.nextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			close(p.wake)
			slog.Info("Poller stopped")
			return nil
		case <-p.signal:
		case <-timer.C:
		}

		p.broadcast()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.nextWait())
	}
}

// nextWait returns the poll interval, shortened when a retried item
// becomes claimable sooner
func (p *Poller) nextWait() time.Duration {
	wait := p.interval
	if next, ok := p.queue.NextEligible(); ok {
		if d := next.Sub(p.queue.Now()); d > 0 && d < wait {
			wait = d
		}
	}
	return wait
}

// broadcast hands out wake-ups without blocking on busy workers
func (p *Poller) broadcast() {
	for i := 0; i < p.slots; i++ {
		select {
		case p.wake <- struct{}{}:
		default:
			return
		}
	}
}
