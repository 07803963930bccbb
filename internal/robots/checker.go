package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nao1215/crawlscope/internal/urlnorm"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched rule set is reused.
	DefaultTTL = time.Hour
	// maxRobotsSize bounds the robots.txt body that is read.
	maxRobotsSize = 512 * 1024
)

// errServerStatus marks a robots.txt response that must not be cached.
var errServerStatus = errors.New("robots: server error")

type entry struct {
	rules   *Rules
	body    []byte
	expires time.Time
}

// Checker fetches and caches robots.txt per origin. It is safe for
// concurrent use.
type Checker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	cache  map[string]*entry
	flight singleflight.Group
}

// Option configures a Checker.
type Option func(*Checker)

// WithTTL sets how long a rule set is cached.
func WithTTL(ttl time.Duration) Option {
	return func(c *Checker) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithUserAgent sets the User-Agent header sent when fetching robots.txt.
func WithUserAgent(ua string) Option {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker returns a Checker that fetches with client.
func NewChecker(client *http.Client, opts ...Option) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Checker{
		client: client,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
		cache:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAllowed reports whether userAgent may fetch rawURL. It returns true
// when robots.txt cannot be obtained.
func (c *Checker) IsAllowed(ctx context.Context, rawURL, userAgent string) bool {
	e, path, err := c.lookup(ctx, rawURL)
	if err != nil {
		c.logger.Debug("robots.txt unavailable, allowing", "url", rawURL, "error", err)
		return true
	}
	return e.rules.Allowed(path, userAgent)
}

// CrawlDelay returns the Crawl-delay that applies to userAgent on the
// origin of rawURL.
func (c *Checker) CrawlDelay(ctx context.Context, rawURL, userAgent string) (time.Duration, bool) {
	e, _, err := c.lookup(ctx, rawURL)
	if err != nil {
		return 0, false
	}
	return e.rules.Delay(userAgent)
}

// Sitemaps returns the Sitemap URLs listed in the robots.txt of rawURL's
// origin.
func (c *Checker) Sitemaps(ctx context.Context, rawURL string) ([]string, error) {
	e, _, err := c.lookup(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(e.body) == 0 {
		return []string{}, nil
	}
	data, err := robotstxt.FromBytes(e.body)
	if err != nil {
		return nil, fmt.Errorf("robots: parse sitemaps: %w", err)
	}
	return append([]string{}, data.Sitemaps...), nil
}

// Len returns the number of cached origins, including expired entries.
func (c *Checker) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Purge drops expired entries and returns how many were removed.
func (c *Checker) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for origin, e := range c.cache {
		if !now.Before(e.expires) {
			delete(c.cache, origin)
			n++
		}
	}
	return n
}

func (c *Checker) lookup(ctx context.Context, rawURL string) (*entry, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", urlnorm.ErrInvalidURL, err)
	}
	origin, err := urlnorm.Origin(rawURL)
	if err != nil {
		return nil, "", err
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	c.mu.RLock()
	e, ok := c.cache[origin]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e, path, nil
	}

	v, err, _ := c.flight.Do(origin, func() (any, error) {
		e, err := c.fetch(ctx, origin)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[origin] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, path, err
	}
	return v.(*entry), path, nil
}

// fetch downloads robots.txt. A 4xx yields an empty rule set, which is
// cached like any other. Network errors and 5xx are returned uncached.
func (c *Checker) fetch(ctx context.Context, origin string) (*entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	expires := c.now().Add(c.ttl)
	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", errServerStatus, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &entry{rules: &Rules{}, expires: expires}, nil
	case resp.StatusCode >= 300:
		// Redirects are followed by the client; anything left over allows all.
		return &entry{rules: &Rules{}, expires: expires}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, err
	}
	return &entry{rules: Parse(body), body: body, expires: expires}, nil
}
