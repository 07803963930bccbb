package engine

import (
	"context"
	"sync"
	"time"
)

// maxCrawlDelay caps a Crawl-delay taken from robots.txt.
const maxCrawlDelay = 10 * time.Second

// originDelays spaces fetches to the same origin by at least a given delay.
type originDelays struct {
	mu   sync.Mutex
	next map[string]time.Time
	now  func() time.Time
}

func newOriginDelays(now func() time.Time) *originDelays {
	return &originDelays{next: make(map[string]time.Time), now: now}
}

// wait reserves the next slot for origin and sleeps until it starts.
func (d *originDelays) wait(ctx context.Context, origin string, delay time.Duration) error {
	delay = min(delay, maxCrawlDelay)

	d.mu.Lock()
	now := d.now()
	slot := now
	if next, ok := d.next[origin]; ok && next.After(now) {
		slot = next
	}
	d.next[origin] = slot.Add(delay)
	d.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
