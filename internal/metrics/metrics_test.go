package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.AddPage(3)
	tr.AddPage(2)
	tr.AddError()
	tr.ObserveDepth(2)
	tr.ObserveDepth(1)

	got := tr.Snapshot()
	assert.Equal(t, 2, got.PagesScraped)
	assert.Equal(t, 5, got.LinksDiscovered)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 2, got.CurrentDepth, "depth must never decrease")
	assert.Equal(t, 2, tr.PagesScraped())
}

func TestTrackerConcurrentReads(t *testing.T) {
	t.Parallel()

	var tr Tracker
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.AddPage(1)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Snapshot().PagesScraped)
}
