package metrics

import (
	"sync"

	"github.com/nao1215/crawlscope/internal/model"
)

// Tracker holds mutable crawl counters.
// The zero value is ready to use.
type Tracker struct {
	mu sync.RWMutex
	m  model.JobMetrics
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AddPage records a scraped page and the number of links found on it.
func (t *Tracker) AddPage(links int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.PagesScraped++
	t.m.LinksDiscovered += links
}

// AddError records a failed URL.
func (t *Tracker) AddError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.Errors++
}

// ObserveDepth raises CurrentDepth to depth if it is deeper.
func (t *Tracker) ObserveDepth(depth int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if depth > t.m.CurrentDepth {
		t.m.CurrentDepth = depth
	}
}

// PagesScraped returns the current page count.
func (t *Tracker) PagesScraped() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.PagesScraped
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() model.JobMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m
}
