package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum spacing between upstream lookups.
const DefaultMinInterval = time.Second

// Limiter spaces upstream lookups.
type Limiter struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewLimiter allows one lookup per interval. A non-positive interval disables
// limiting. A nil now uses time.Now.
func NewLimiter(interval time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{limiter: rate.NewLimiter(limit, 1), now: now, sleep: sleepContext}
}

// Wait blocks until the next lookup may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("lookup limiter: burst exceeded")
	}
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	if err := l.sleep(ctx, d); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
