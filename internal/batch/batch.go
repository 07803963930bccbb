package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when no concurrency is configured.
const DefaultConcurrency = 5

// Scraper scrapes one URL. *scrape.Scraper satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, timeout time.Duration) (*model.PageData, error)
}

// Processor runs batch scrapes. A slot is refilled as soon as any scrape
// finishes, so results arrive in completion order.
type Processor struct {
	scraper     Scraper
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency sets the default number of scrapes in flight.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTimeout sets the per-URL fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithClock overrides the time source for batch durations.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor returns a Processor that scrapes through scraper.
func NewProcessor(scraper Scraper, opts ...Option) *Processor {
	p := &Processor{
		scraper:     scraper,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Outcome is the result of scraping one URL of a batch.
type Outcome struct {
	URL   string
	Index int
	Page  *model.PageData
	Err   error
}

// Process scrapes urls with at most concurrency scrapes in flight. A
// non-positive concurrency uses the Processor default. Individual failures
// are reported in the result and never fail the batch.
func (p *Processor) Process(ctx context.Context, urls []string, concurrency int) *model.BatchResult {
	start := p.now()
	result := &model.BatchResult{
		Results: []model.PageData{},
		Errors:  []model.BatchError{},
	}

	var mu sync.Mutex
	p.ProcessWithCallback(ctx, urls, concurrency, func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		if o.Err != nil {
			result.Errors = append(result.Errors, model.BatchError{URL: o.URL, Error: o.Err.Error()})
			return
		}
		result.Results = append(result.Results, *o.Page)
	})

	result.Stats = model.BatchStats{
		Total:    len(urls),
		Success:  len(result.Results),
		Failed:   len(result.Errors),
		Duration: p.now().Sub(start),
	}
	p.logger.Info("batch scrape complete",
		"total", result.Stats.Total,
		"success", result.Stats.Success,
		"failed", result.Stats.Failed,
		"elapsed", result.Stats.Duration,
	)
	return result
}

// ProcessWithCallback scrapes urls and calls fn once per URL as soon as its
// scrape finishes. fn is called from worker goroutines and must be safe for
// concurrent use. URLs not started before ctx is done are reported with
// ctx's error.
func (p *Processor) ProcessWithCallback(ctx context.Context, urls []string, concurrency int, fn func(Outcome)) {
	if concurrency <= 0 {
		concurrency = p.concurrency
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fn(Outcome{URL: u, Index: i, Err: err})
				return nil
			}

			page, err := p.scraper.Scrape(ctx, u, p.timeout)
			if err != nil {
				p.logger.Debug("batch scrape failed", "url", u, "error", err)
			}
			fn(Outcome{URL: u, Index: i, Page: page, Err: err})
			return nil
		})
	}
	_ = g.Wait()
}
