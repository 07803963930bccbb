package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/crawlscope/internal/fetch"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/parse"
	"github.com/nao1215/crawlscope/internal/urlnorm"
)

// Throttle schedules fn under the limits of the bucket named key.
// ratelimit.Group satisfies it.
type Throttle interface {
	Schedule(ctx context.Context, key string, fn func(context.Context) error) error
}

// Scraper turns a URL into PageData.
type Scraper struct {
	fetcher       fetch.Fetcher
	parser        parse.Parser
	throttle      Throttle
	maxTextLength int
	now           func() time.Time
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithThrottle wraps every fetch in t.
func WithThrottle(t Throttle) Option {
	return func(s *Scraper) {
		s.throttle = t
	}
}

// WithMaxTextLength bounds PageData.Text in runes.
func WithMaxTextLength(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxTextLength = n
		}
	}
}

// WithClock overrides the time source for ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// New returns a Scraper.
func New(fetcher fetch.Fetcher, parser parse.Parser, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:       fetcher,
		parser:        parser,
		maxTextLength: model.DefaultMaxTextLength,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape normalizes rawURL, then fetches and parses it. A non-positive
// timeout leaves the deadline to ctx.
//
// Errors wrap urlnorm.ErrInvalidURL, fetch.ErrFetchFailed or
// parse.ErrParseFailed.
func (s *Scraper) Scrape(ctx context.Context, rawURL string, timeout time.Duration) (*model.PageData, error) {
	pageURL, err := urlnorm.Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	if !urlnorm.IsHTTPURL(pageURL) {
		return nil, fmt.Errorf("%w: %q is not http(s)", urlnorm.ErrInvalidURL, rawURL)
	}

	resp, err := s.fetch(ctx, pageURL, timeout)
	if err != nil {
		return nil, err
	}

	doc, err := s.parser.Parse(resp.Body, pageURL)
	if err != nil {
		return nil, err
	}

	page := &model.PageData{
		URL:       pageURL,
		Title:     doc.Title,
		Text:      doc.Text,
		Links:     extractLinks(baseURL(resp, pageURL), doc.Links, pageURL),
		ScrapedAt: s.now(),
	}
	if !doc.Meta.IsEmpty() {
		meta := doc.Meta
		page.Meta = &meta
	}
	page.TruncateText(s.maxTextLength)
	return page, nil
}

// fetch runs the fetcher under the throttle and the per-fetch timeout.
func (s *Scraper) fetch(ctx context.Context, pageURL string, timeout time.Duration) (*fetch.Response, error) {
	do := func(ctx context.Context) (*fetch.Response, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return s.fetcher.Fetch(ctx, pageURL)
	}

	if s.throttle == nil {
		return do(ctx)
	}

	origin, err := urlnorm.Origin(pageURL)
	if err != nil {
		return nil, err
	}
	var (
		resp     *fetch.Response
		fetchErr error
		ran      bool
	)
	err = s.throttle.Schedule(ctx, origin, func(ctx context.Context) error {
		ran = true
		resp, fetchErr = do(ctx)
		return fetchErr
	})
	if ran {
		return resp, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: throttled: %w", fetch.ErrFetchFailed, err)
	}
	return resp, nil
}

// baseURL returns the URL relative links resolve against: the final URL
// after redirects when known, otherwise the requested one.
func baseURL(resp *fetch.Response, pageURL string) string {
	if resp.URL != "" {
		return resp.URL
	}
	return pageURL
}

// ExtractLinks resolves raw hrefs against base and returns the distinct
// normalized http(s) URLs in first-seen order. Unresolvable links, other
// schemes and links back to base itself are dropped.
func ExtractLinks(base string, rawLinks []string) []string {
	return extractLinks(base, rawLinks)
}

// extractLinks is ExtractLinks with additional self URLs to exclude.
func extractLinks(base string, rawLinks []string, selfURLs ...string) []string {
	self, err := urlnorm.Normalize(base)
	if err != nil {
		return []string{}
	}
	exclude := map[string]struct{}{self: {}}
	for _, u := range selfURLs {
		exclude[u] = struct{}{}
	}

	seen := make(map[string]struct{}, len(rawLinks))
	links := make([]string, 0, len(rawLinks))
	for _, raw := range rawLinks {
		resolved, err := urlnorm.Resolve(base, raw)
		if err != nil || !urlnorm.IsHTTPURL(resolved) {
			continue
		}
		if _, isSelf := exclude[resolved]; isSelf {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}
	return links
}
