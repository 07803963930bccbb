package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
)

// stubScraper returns a page for every URL except those in fail.
type stubScraper struct {
	fail     map[string]bool
	delay    func(url string) time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubScraper) Scrape(ctx context.Context, rawURL string, _ time.Duration) (*model.PageData, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.delay != nil {
		select {
		case <-time.After(s.delay(rawURL)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail[rawURL] {
		return nil, errors.New("fetch failed")
	}
	return &model.PageData{URL: rawURL, Title: "title of " + rawURL}, nil
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	return out
}

// TestNewProcessor tests the Processor constructor.
func TestNewProcessor(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		p := NewProcessor(&stubScraper{})
		if p.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, p.concurrency)
		}
		if p.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		p := NewProcessor(&stubScraper{}, WithConcurrency(0))
		if p.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, p.concurrency)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		p := NewProcessor(&stubScraper{}, WithConcurrency(3), WithTimeout(time.Second), WithLogger(nil))
		if p.concurrency != 3 {
			t.Errorf("expected concurrency 3, got %d", p.concurrency)
		}
		if p.timeout != time.Second {
			t.Errorf("expected timeout 1s, got %v", p.timeout)
		}
		if p.logger == nil {
			t.Error("expected default logger when nil is passed")
		}
	})
}

// TestProcess tests batch scraping.
func TestProcess(t *testing.T) {
	t.Parallel()

	t.Run("collects results and errors", func(t *testing.T) {
		t.Parallel()

		in := urls(6)
		s := &stubScraper{fail: map[string]bool{in[1]: true, in[4]: true}}
		result := NewProcessor(s).Process(context.Background(), in, 0)

		if result.Stats.Total != 6 || result.Stats.Success != 4 || result.Stats.Failed != 2 {
			t.Errorf("unexpected stats: %+v", result.Stats)
		}
		if len(result.Results) != 4 {
			t.Fatalf("expected 4 results, got %d", len(result.Results))
		}

		failed := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			failed = append(failed, e.URL)
			if e.Error != "fetch failed" {
				t.Errorf("unexpected error message %q", e.Error)
			}
		}
		sort.Strings(failed)
		if failed[0] != in[1] || failed[1] != in[4] {
			t.Errorf("unexpected failed urls: %v", failed)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		s := &stubScraper{delay: func(string) time.Duration { return 10 * time.Millisecond }}
		NewProcessor(s, WithConcurrency(10)).Process(context.Background(), urls(12), 2)

		if peak := s.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 scrapes in flight, got %d", peak)
		}
	})

	t.Run("results arrive in completion order", func(t *testing.T) {
		t.Parallel()

		in := urls(2)
		s := &stubScraper{delay: func(u string) time.Duration {
			if u == in[0] {
				return 50 * time.Millisecond
			}
			return 0
		}}
		result := NewProcessor(s).Process(context.Background(), in, 2)

		if len(result.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(result.Results))
		}
		if result.Results[0].URL != in[1] {
			t.Errorf("expected the fast url first, got %s", result.Results[0].URL)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		result := NewProcessor(&stubScraper{}).Process(context.Background(), nil, 0)
		if result.Stats.Total != 0 || len(result.Results) != 0 || len(result.Errors) != 0 {
			t.Errorf("unexpected result for empty batch: %+v", result)
		}
	})

	t.Run("cancelled context fails remaining urls", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := NewProcessor(&stubScraper{}).Process(ctx, urls(3), 1)
		if result.Stats.Failed != 3 {
			t.Errorf("expected 3 failures, got %+v", result.Stats)
		}
	})
}

// TestProcessWithCallback tests streaming batch results.
func TestProcessWithCallback(t *testing.T) {
	t.Parallel()

	in := urls(5)
	var (
		mu   sync.Mutex
		seen = map[int]string{}
	)
	NewProcessor(&stubScraper{}).ProcessWithCallback(context.Background(), in, 2, func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		if o.Err != nil {
			t.Errorf("unexpected error for %s: %v", o.URL, o.Err)
			return
		}
		seen[o.Index] = o.Page.URL
	})

	if len(seen) != len(in) {
		t.Fatalf("expected %d callbacks, got %d", len(in), len(seen))
	}
	for i, u := range in {
		if seen[i] != u {
			t.Errorf("index %d: expected %s, got %s", i, u, seen[i])
		}
	}
}
