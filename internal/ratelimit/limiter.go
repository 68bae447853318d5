package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Spec is a declarative request cap.
type Spec struct {
	Interval          time.Duration
	EventsPerInterval int
	AllowBurst        bool
}

func (s Spec) String() string {
	burst := "spaced"
	if s.AllowBurst {
		burst = "burst"
	}
	return fmt.Sprintf("%d/%s (%s)", s.EventsPerInterval, s.Interval, burst)
}

// Limiter admits callers under a Spec. It is safe for concurrent use; all
// callers contend for the same permits.
//
// Spaced specs admit one permit every Interval/EventsPerInterval. Burst specs
// admit up to EventsPerInterval permits at once but never more than that
// within any Interval.
type Limiter struct {
	spec    Spec
	limiter *rate.Limiter
	window  *window
}

// NewLimiter builds a limiter for spec. A spec without a positive interval or
// event count produces a limiter that never blocks.
func NewLimiter(spec Spec) *Limiter {
	if spec.Interval <= 0 || spec.EventsPerInterval <= 0 {
		return &Limiter{spec: spec, limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if spec.AllowBurst {
		return &Limiter{spec: spec, window: newWindow(spec.EventsPerInterval, spec.Interval)}
	}
	every := rate.Every(spec.Interval / time.Duration(spec.EventsPerInterval))
	return &Limiter{spec: spec, limiter: rate.NewLimiter(every, 1)}
}

// Acquire blocks until a permit is available or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.window != nil {
		if err := l.window.wait(ctx); err != nil {
			return fmt.Errorf("acquire rate limit permit: %w", err)
		}
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("acquire rate limit permit: %w", err)
	}
	return nil
}

// window is a sliding log of the last size grant times. A new permit is
// granted no earlier than interval after the oldest one in the log.
type window struct {
	mu       sync.Mutex
	size     int
	interval time.Duration
	grants   []time.Time
	next     int
}

func newWindow(size int, interval time.Duration) *window {
	return &window{size: size, interval: interval, grants: make([]time.Time, 0, size)}
}

// reserve books the earliest permit time. Reservations are handed out in
// order, so the log stays sorted.
func (w *window) reserve(now time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.grants) < w.size {
		w.grants = append(w.grants, now)
		return now
	}
	at := now
	if earliest := w.grants[w.next].Add(w.interval); earliest.After(at) {
		at = earliest
	}
	w.grants[w.next] = at
	w.next = (w.next + 1) % w.size
	return at
}

// wait reserves a permit and sleeps until it is due. A reservation abandoned
// because ctx ended still counts against the window.
func (w *window) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := time.Until(w.reserve(time.Now()))
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spec returns the configured cap.
func (l *Limiter) Spec() Spec {
	if l == nil {
		return Spec{}
	}
	return l.spec
}
