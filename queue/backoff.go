package queue

import (
	"math"
	"time"
)

// Backoff computes the delay before a failed item becomes claimable again.
// Delay(n) is Base * 2^n capped at Max, with no jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns a 1s base delay capped at 5 minutes
func DefaultBackoff() Backoff {
	return Backoff{
		Base: time.Second,
		Max:  5 * time.Minute,
	}
}

// Delay returns the wait after the n-th failed attempt (n starts at 0)
func (b Backoff) Delay(n int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}

	delay := b.Base
	for i := 0; i < n; i++ {
		if delay > math.MaxInt64/2 {
			return time.Duration(math.MaxInt64)
		}
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
