package rebuild

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultProgressInterval limits progress forwarding to four updates per second.
const DefaultProgressInterval = 250 * time.Millisecond

// throttle forwards loader progress to the caller at a limited rate. First
// and last calls are always forwarded. A cancel request is sticky.
type throttle struct {
	ctx       context.Context
	limiter   *rate.Limiter
	next      ProgressFunc
	cancelled bool
	calls     int
	forwarded int
	last      Progress
}

func newThrottle(ctx context.Context, interval time.Duration, next ProgressFunc) *throttle {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &throttle{
		ctx:     ctx,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		next:    next,
	}
}

func (t *throttle) progress(p Progress) bool {
	t.calls++
	t.last = p
	if t.ctx.Err() != nil {
		t.cancelled = true
	}
	if t.cancelled {
		return true
	}
	if p.FirstCall || p.LastCall || t.limiter.Allow() {
		t.forwarded++
		if t.next != nil && t.next(p) {
			t.cancelled = true
		}
	}
	return t.cancelled
}
