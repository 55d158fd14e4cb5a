// Package ratelimit bounds concurrent calls and calls per rolling window
// against an external service. Waiting callers are admitted strictly in
// arrival order.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"refcheck/src/internal/metrics"
)

// SafetyBuffer is added to the timer that waits for the oldest request to
// leave the rolling window.
const SafetyBuffer = 100 * time.Millisecond

// ErrClosed is returned to callers still queued when the limiter is closed.
var ErrClosed = errors.New("ratelimit: limiter closed")

// Options configures a Limiter. Zero values mean unbounded.
type Options struct {
	Name              string
	MaxConcurrent     int
	RequestsPerMinute int
	// Window is the rolling window RequestsPerMinute applies to (default one minute).
	Window time.Duration
}

// Stats is a point-in-time snapshot of a Limiter.
type Stats struct {
	InFlight int
	Queued   int
	InWindow int
}

type waiter struct {
	ready    chan struct{}
	admitted bool
	err      error
}

// Limiter is an admission controller. The zero value is not usable; use New.
type Limiter struct {
	opts Options

	mu       sync.Mutex
	inFlight int
	stamps   []time.Time
	queue    []*waiter
	timer    *time.Timer
	closed   bool
}

// New returns a Limiter for opts.
func New(opts Options) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Limiter{opts: opts}
}

// Stats reports the current in-flight and queued counts.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(time.Now())
	return Stats{InFlight: l.inFlight, Queued: len(l.queue), InWindow: len(l.stamps)}
}

// Close fails every queued caller with ErrClosed and rejects new ones.
// Tasks already admitted run to completion.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	for _, w := range l.queue {
		w.err = ErrClosed
		close(w.ready)
	}
	l.queue = nil
	l.gaugesLocked()
}

// Schedule runs task once l admits it. A nil Limiter runs task immediately.
// If ctx is done while the task is still queued, the task is dropped from the
// queue and ctx's error is returned.
func Schedule[T any](ctx context.Context, l *Limiter, task func(context.Context) (T, error)) (T, error) {
	if l == nil {
		return task(ctx)
	}
	if err := l.acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer l.release()
	return task(ctx)
}

// Settled is the outcome of one task run by RunAllSettled.
type Settled[T any] struct {
	Value T
	Err   error
}

// RunAll schedules every task and returns their results in the order given.
// The first error cancels tasks that have not been admitted yet and is returned.
func RunAll[T any](ctx context.Context, l *Limiter, tasks []func(context.Context) (T, error)) ([]T, error) {
	out := make([]T, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			v, err := Schedule(gctx, l, task)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// RunAllSettled schedules every task and waits for all of them, returning each
// outcome in the order given.
func RunAllSettled[T any](ctx context.Context, l *Limiter, tasks []func(context.Context) (T, error)) []Settled[T] {
	out := make([]Settled[T], len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Schedule(ctx, l, task)
			out[i] = Settled[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return out
}

func (l *Limiter) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	queuedAt := time.Now()
	w := &waiter{ready: make(chan struct{})}
	l.queue = append(l.queue, w)
	l.pumpLocked()
	l.mu.Unlock()

	select {
	case <-w.ready:
		if w.err == nil {
			metrics.SchedulerWait.WithLabelValues(l.opts.Name).Observe(time.Since(queuedAt).Seconds())
		}
		return w.err
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		if w.err != nil {
			return w.err
		}
		if w.admitted {
			// admitted while ctx fired; give the slot back
			l.inFlight--
			l.pumpLocked()
			return ctx.Err()
		}
		l.removeLocked(w)
		l.pumpLocked()
		return ctx.Err()
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight--
	l.pumpLocked()
}

func (l *Limiter) removeLocked(w *waiter) {
	for i, q := range l.queue {
		if q == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.opts.Window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	l.stamps = l.stamps[i:]
}

// pumpLocked admits waiters head to tail while both budgets allow, arming a
// timer when the rate budget is the blocker.
func (l *Limiter) pumpLocked() {
	now := time.Now()
	l.pruneLocked(now)
	for len(l.queue) > 0 {
		if l.opts.MaxConcurrent > 0 && l.inFlight >= l.opts.MaxConcurrent {
			break
		}
		if l.opts.RequestsPerMinute > 0 && len(l.stamps) >= l.opts.RequestsPerMinute {
			l.armTimerLocked(l.stamps[0].Add(l.opts.Window + SafetyBuffer).Sub(now))
			break
		}
		w := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.inFlight++
		if l.opts.RequestsPerMinute > 0 {
			l.stamps = append(l.stamps, now)
		}
		w.admitted = true
		close(w.ready)
	}
	l.gaugesLocked()
}

// armTimerLocked is a no-op while a timer is pending: the oldest stamp only
// moves later, so a pending timer never fires after the one we would arm.
func (l *Limiter) armTimerLocked(d time.Duration) {
	if l.timer != nil || l.closed {
		return
	}
	if d < 0 {
		d = 0
	}
	l.timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.timer = nil
		if !l.closed {
			l.pumpLocked()
		}
	})
}

func (l *Limiter) gaugesLocked() {
	metrics.SchedulerQueued.WithLabelValues(l.opts.Name).Set(float64(len(l.queue)))
	metrics.SchedulerInFlight.WithLabelValues(l.opts.Name).Set(float64(l.inFlight))
}
