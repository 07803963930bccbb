package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Default limits.
const (
	DefaultMinTime                  = 100 * time.Millisecond
	DefaultMaxConcurrent            = 10
	DefaultReservoir                = 600
	DefaultReservoirRefreshInterval = time.Minute
)

// Options holds the limits of a Limiter.
// A zero MinTime disables spacing and a zero Reservoir disables the reservoir.
type Options struct {
	MinTime                  time.Duration
	MaxConcurrent            int
	Reservoir                int
	ReservoirRefreshInterval time.Duration
}

// DefaultOptions returns the default limits.
func DefaultOptions() Options {
	return Options{
		MinTime:                  DefaultMinTime,
		MaxConcurrent:            DefaultMaxConcurrent,
		Reservoir:                DefaultReservoir,
		ReservoirRefreshInterval: DefaultReservoirRefreshInterval,
	}
}

// Limiter schedules functions under a concurrency cap, a refilled
// reservoir and a minimum spacing. It is safe for concurrent use.
//
// The reservoir is refilled lazily when a start is requested, so an idle
// Limiter holds no goroutines or timers.
type Limiter struct {
	spacing *rate.Limiter
	sem     *semaphore.Weighted
	minTime time.Duration
	now     func() time.Time

	mu           sync.Mutex
	reservoir    int
	reservoirMax int
	interval     time.Duration
	nextRefill   time.Time
	cleared      chan struct{}
	closed       bool

	running atomic.Int64
	queued  atomic.Int64
}

// NewLimiter returns a Limiter enforcing opts.
func NewLimiter(opts Options) *Limiter {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	spacing := rate.NewLimiter(rate.Inf, 1)
	if opts.MinTime > 0 {
		spacing = rate.NewLimiter(rate.Every(opts.MinTime), 1)
	}

	l := &Limiter{
		spacing: spacing,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		minTime: opts.MinTime,
		now:     time.Now,
		cleared: make(chan struct{}),
	}
	if opts.Reservoir > 0 {
		l.reservoir = opts.Reservoir
		l.reservoirMax = opts.Reservoir
		l.interval = opts.ReservoirRefreshInterval
		if l.interval <= 0 {
			l.interval = DefaultReservoirRefreshInterval
		}
		l.nextRefill = l.now().Add(l.interval)
	}
	return l
}

// recovery is how long the Limiter must stay unused before it is back to
// its initial state: a full reservoir and no pending spacing.
func (l *Limiter) recovery() time.Duration {
	return max(l.interval, l.minTime)
}

// Schedule waits until fn may start, runs it and returns its error.
// Waiting ends early with ctx's error, ErrCleared or ErrClosed.
func (l *Limiter) Schedule(ctx context.Context, fn func(context.Context) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	cleared := l.cleared
	l.mu.Unlock()

	l.queued.Add(1)
	err := l.admit(ctx, cleared)
	l.queued.Add(-1)
	if err != nil {
		return err
	}
	defer l.sem.Release(1)

	l.running.Add(1)
	defer l.running.Add(-1)
	return fn(ctx)
}

// admit acquires a concurrency slot, a reservoir token and a spacing slot.
// On success the caller owns one semaphore unit.
func (l *Limiter) admit(ctx context.Context, cleared <-chan struct{}) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-cleared:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	wrap := func(err error) error {
		select {
		case <-cleared:
			return ErrCleared
		default:
			return err
		}
	}

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		return wrap(err)
	}
	if err := l.takeReservoir(waitCtx); err != nil {
		l.sem.Release(1)
		return wrap(err)
	}
	if err := l.spacing.Wait(waitCtx); err != nil {
		l.sem.Release(1)
		return wrap(err)
	}
	return nil
}

func (l *Limiter) takeReservoir(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return ErrClosed
		}
		if l.reservoirMax == 0 {
			l.mu.Unlock()
			return nil
		}
		now := l.now()
		l.refillLocked(now)
		if l.reservoir > 0 {
			l.reservoir--
			l.mu.Unlock()
			return nil
		}
		wait := l.nextRefill.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// refillLocked restores the reservoir when one or more refresh intervals
// have passed. The caller holds l.mu.
func (l *Limiter) refillLocked(now time.Time) {
	if l.reservoirMax == 0 || now.Before(l.nextRefill) {
		return
	}
	l.reservoir = l.reservoirMax
	missed := now.Sub(l.nextRefill) / l.interval
	l.nextRefill = l.nextRefill.Add((missed + 1) * l.interval)
}

// Running returns the number of functions in flight.
func (l *Limiter) Running() int {
	return int(l.running.Load())
}

// Queued returns the number of callers waiting to start.
func (l *Limiter) Queued() int {
	return int(l.queued.Load())
}

// Reservoir returns the starts left until the next refill, or -1 when the
// reservoir is disabled.
func (l *Limiter) Reservoir() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reservoirMax == 0 {
		return -1
	}
	l.refillLocked(l.now())
	return l.reservoir
}

// Clear fails every queued caller with ErrCleared. Running functions are
// not affected and later calls to Schedule are admitted normally.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.cleared)
	l.cleared = make(chan struct{})
}

// Close clears the queue and rejects later calls to Schedule.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.Clear()
}
