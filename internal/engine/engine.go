package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/crawlscope/internal/metrics"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/queue"
	"github.com/nao1215/crawlscope/internal/rules"
	"github.com/nao1215/crawlscope/internal/urlnorm"
	"golang.org/x/sync/errgroup"
)

// Scraper fetches and parses one URL. *scrape.Scraper satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, timeout time.Duration) (*model.PageData, error)
}

// RobotsPolicy answers robots.txt queries. *robots.Checker satisfies it.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL, userAgent string) bool
	CrawlDelay(ctx context.Context, rawURL, userAgent string) (time.Duration, bool)
}

// Engine runs crawls. One Engine may run many crawls concurrently; each
// Run owns its own queue, visited set and rules.
type Engine struct {
	scraper    Scraper
	robots     RobotsPolicy
	userAgent  string
	ruleOpts   []rules.Option
	siteRules  func(host string) []rules.Option
	newQueue   func() queue.Queue
	newVisited func() queue.VisitedSet
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRobots consults policy for every URL that passes the crawl rules,
// as userAgent.
func WithRobots(policy RobotsPolicy, userAgent string) Option {
	return func(e *Engine) {
		e.robots = policy
		e.userAgent = userAgent
	}
}

// WithRuleOptions adds options to the rules built for every crawl.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(e *Engine) {
		e.ruleOpts = append(e.ruleOpts, opts...)
	}
}

// WithSiteRules adds options chosen by the seed's host, such as the
// ignore and follow patterns configured for one site.
func WithSiteRules(fn func(host string) []rules.Option) Option {
	return func(e *Engine) {
		e.siteRules = fn
	}
}

// WithQueue replaces the in-memory FIFO used by each crawl.
func WithQueue(newQueue func() queue.Queue) Option {
	return func(e *Engine) {
		e.newQueue = newQueue
	}
}

// WithVisitedSet replaces the in-memory visited set used by each crawl.
func WithVisitedSet(newVisited func() queue.VisitedSet) Option {
	return func(e *Engine) {
		e.newVisited = newVisited
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source for error timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New returns an Engine that scrapes through scraper.
func New(scraper Scraper, opts ...Option) *Engine {
	e := &Engine{
		scraper:    scraper,
		newQueue:   func() queue.Queue { return queue.NewFIFO() },
		newVisited: func() queue.VisitedSet { return queue.NewMemoryVisited() },
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// crawl is the state of one Run.
type crawl struct {
	*Engine
	opts    model.CrawlOptions
	rules   *rules.Rules
	queue   queue.Queue
	visited queue.VisitedSet
	tracker *metrics.Tracker
	delays  *originDelays
	result  *model.CrawlResult
}

type outcome struct {
	page *model.PageData
	err  error
}

// Run crawls from opts.StartURL and returns the aggregate result. tracker
// receives live counters and may be nil.
//
// When ctx is cancelled Run stops between batches and returns the partial
// result together with ctx's error.
func (e *Engine) Run(ctx context.Context, opts model.CrawlOptions, tracker *metrics.Tracker) (*model.CrawlResult, error) {
	start := e.now()

	c, err := e.prepare(opts, tracker)
	if err != nil {
		return nil, err
	}
	c.queue.Enqueue(queue.Item{URL: c.opts.StartURL, Depth: 0})

	for !c.queue.IsEmpty() && c.result.PagesScraped < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			c.result.Duration = e.now().Sub(start)
			return c.result, err
		}

		batch := c.nextBatch(ctx)
		if len(batch) == 0 {
			continue
		}

		outcomes := c.scrapeBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			c.result.Duration = e.now().Sub(start)
			return c.result, err
		}
		c.apply(batch, outcomes)
	}

	c.result.Duration = e.now().Sub(start)
	e.logger.Debug("crawl finished",
		"start_url", c.opts.StartURL,
		"pages", c.result.PagesScraped,
		"errors", len(c.result.Errors),
		"visited", c.visited.Len(),
		"duration", c.result.Duration,
	)
	return c.result, nil
}

// prepare validates opts and builds the per-crawl state.
func (e *Engine) prepare(opts model.CrawlOptions, tracker *metrics.Tracker) (*crawl, error) {
	seed, err := urlnorm.Normalize(opts.StartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFatal, err)
	}
	if !urlnorm.IsHTTPURL(seed) {
		return nil, fmt.Errorf("%w: %w: %q is not http(s)", ErrEngineFatal, urlnorm.ErrInvalidURL, opts.StartURL)
	}
	if opts.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: maxDepth must be at least 1, got %d", ErrEngineFatal, opts.MaxDepth)
	}
	if opts.MaxPages < 1 {
		return nil, fmt.Errorf("%w: maxPages must be at least 1, got %d", ErrEngineFatal, opts.MaxPages)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	opts.StartURL = seed

	ruleOpts := e.ruleOpts
	if e.siteRules != nil {
		host, err := urlnorm.Domain(seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEngineFatal, err)
		}
		ruleOpts = append(append([]rules.Option(nil), e.ruleOpts...), e.siteRules(host)...)
	}
	r, err := rules.New(opts, ruleOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFatal, err)
	}
	if tracker == nil {
		tracker = metrics.NewTracker()
	}

	return &crawl{
		Engine:  e,
		opts:    opts,
		rules:   r,
		queue:   e.newQueue(),
		visited: e.newVisited(),
		tracker: tracker,
		delays:  newOriginDelays(e.now),
		result: &model.CrawlResult{
			Errors: []model.CrawlError{},
			Pages:  []model.PageData{},
		},
	}, nil
}

// nextBatch dequeues until it holds Concurrency crawlable items, never more
// than the pages still allowed, or the queue runs dry. Every dequeued URL is
// marked visited before any check so it is processed at most once.
func (c *crawl) nextBatch(ctx context.Context) []queue.Item {
	limit := min(c.opts.Concurrency, c.opts.MaxPages-c.result.PagesScraped)
	batch := make([]queue.Item, 0, limit)

	for len(batch) < limit {
		item, ok := c.queue.Dequeue()
		if !ok {
			break
		}
		if !c.visited.Add(item.URL) {
			continue
		}
		if !c.rules.ShouldCrawl(item.URL, item.Depth, c.result.PagesScraped) {
			continue
		}
		if c.robots != nil && !c.robots.IsAllowed(ctx, item.URL, c.userAgent) {
			c.recordError(item.URL, errBlockedByRobots)
			continue
		}
		c.tracker.ObserveDepth(item.Depth)
		batch = append(batch, item)
	}
	return batch
}

// scrapeBatch scrapes every item in parallel. outcomes[i] belongs to batch[i].
func (c *crawl) scrapeBatch(ctx context.Context, batch []queue.Item) []outcome {
	outcomes := make([]outcome, len(batch))

	var g errgroup.Group
	for i, item := range batch {
		g.Go(func() error {
			if err := c.waitCrawlDelay(ctx, item.URL); err != nil {
				outcomes[i] = outcome{err: err}
				return nil
			}
			page, err := c.scraper.Scrape(ctx, item.URL, c.opts.Timeout)
			outcomes[i] = outcome{page: page, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// apply records outcomes in dequeue order and enqueues the children of
// every scraped page.
func (c *crawl) apply(batch []queue.Item, outcomes []outcome) {
	for i, item := range batch {
		o := outcomes[i]
		if o.err != nil {
			c.recordError(item.URL, o.err)
			continue
		}

		page := *o.page
		page.URL = item.URL
		page.Depth = item.Depth
		c.result.Pages = append(c.result.Pages, page)
		c.result.PagesScraped++
		c.result.LinksDiscovered += len(page.Links)
		c.tracker.AddPage(len(page.Links))

		if item.Depth+1 < c.opts.MaxDepth {
			children := make([]queue.Item, 0, len(page.Links))
			for _, link := range page.Links {
				children = append(children, queue.Item{URL: link, Depth: item.Depth + 1, ParentURL: item.URL})
			}
			c.queue.EnqueueBatch(children)
		}

		if c.result.PagesScraped >= c.opts.MaxPages {
			return
		}
	}
}

func (c *crawl) recordError(rawURL string, err error) {
	c.result.Errors = append(c.result.Errors, model.CrawlError{
		URL:       rawURL,
		Error:     err.Error(),
		Timestamp: c.now(),
	})
	c.tracker.AddError()
	c.logger.Debug("crawl url failed", "url", rawURL, "error", err)
}

// waitCrawlDelay honours the robots.txt Crawl-delay of rawURL's origin.
func (c *crawl) waitCrawlDelay(ctx context.Context, rawURL string) error {
	if c.robots == nil {
		return nil
	}
	delay, ok := c.robots.CrawlDelay(ctx, rawURL, c.userAgent)
	if !ok || delay <= 0 {
		return nil
	}
	origin, err := urlnorm.Origin(rawURL)
	if err != nil {
		return err
	}
	return c.delays.wait(ctx, origin, delay)
}
