package api

import (
	"fmt"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/urlnorm"
)

// Limits bounds client-supplied values.
type Limits struct {
	MaxDepth       int
	MaxPages       int
	MaxConcurrency int
	MaxTimeout     time.Duration
	MaxBatchURLs   int
}

// CrawlDefaults fills options a client leaves out.
type CrawlDefaults struct {
	Strategy    model.Strategy
	MaxDepth    int
	MaxPages    int
	Concurrency int
	Timeout     time.Duration
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:       10,
		MaxPages:       1000,
		MaxConcurrency: 20,
		MaxTimeout:     60 * time.Second,
		MaxBatchURLs:   100,
	}
}

// DefaultCrawlDefaults returns the built-in crawl defaults.
func DefaultCrawlDefaults() CrawlDefaults {
	return CrawlDefaults{
		Strategy:    model.StrategyDomain,
		MaxDepth:    3,
		MaxPages:    100,
		Concurrency: 5,
		Timeout:     10 * time.Second,
	}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type batchRequest struct {
	URLs        []string `json:"urls"`
	Concurrency *int     `json:"concurrency,omitempty"`
}

type crawlRequest struct {
	StartURL    string `json:"startUrl"`
	Strategy    string `json:"strategy,omitempty"`
	MaxDepth    *int   `json:"maxDepth,omitempty"`
	MaxPages    *int   `json:"maxPages,omitempty"`
	Concurrency *int   `json:"concurrency,omitempty"`
	Timeout     *int64 `json:"timeout,omitempty"`
}

type crawlAccepted struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// validateURL requires an absolute http(s) URL.
func validateURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", urlnorm.ErrInvalidURL)
	}
	u, err := urlnorm.Normalize(raw)
	if err != nil {
		return "", err
	}
	if !urlnorm.IsHTTPURL(u) {
		return "", fmt.Errorf("%w: %q is not http(s)", urlnorm.ErrInvalidURL, raw)
	}
	return u, nil
}

// bounded returns def when v is nil, rejects values below 1 and clamps
// values above limit.
func bounded(name string, v *int, def, limit int) (int, error) {
	if v == nil {
		return min(def, limit), nil
	}
	if *v < 1 {
		return 0, fmt.Errorf("%w: %s must be at least 1", errInvalidRequest, name)
	}
	return min(*v, limit), nil
}

// crawlOptions validates req and resolves it into bounded CrawlOptions.
func (req crawlRequest) crawlOptions(defaults CrawlDefaults, limits Limits) (model.CrawlOptions, error) {
	start, err := validateURL(req.StartURL)
	if err != nil {
		return model.CrawlOptions{}, err
	}

	strategy := defaults.Strategy
	if req.Strategy != "" {
		strategy = model.Strategy(req.Strategy)
		if !strategy.Valid() {
			return model.CrawlOptions{}, fmt.Errorf("%w: unknown strategy %q", errInvalidRequest, req.Strategy)
		}
	}

	opts := model.CrawlOptions{StartURL: start, Strategy: strategy}
	if opts.MaxDepth, err = bounded("maxDepth", req.MaxDepth, defaults.MaxDepth, limits.MaxDepth); err != nil {
		return model.CrawlOptions{}, err
	}
	if opts.MaxPages, err = bounded("maxPages", req.MaxPages, defaults.MaxPages, limits.MaxPages); err != nil {
		return model.CrawlOptions{}, err
	}
	if opts.Concurrency, err = bounded("concurrency", req.Concurrency, defaults.Concurrency, limits.MaxConcurrency); err != nil {
		return model.CrawlOptions{}, err
	}

	opts.Timeout = min(defaults.Timeout, limits.MaxTimeout)
	if req.Timeout != nil {
		if *req.Timeout < 1 {
			return model.CrawlOptions{}, fmt.Errorf("%w: timeout must be at least 1ms", errInvalidRequest)
		}
		// Clamp in milliseconds so huge values cannot overflow Duration.
		opts.Timeout = time.Duration(min(*req.Timeout, limits.MaxTimeout.Milliseconds())) * time.Millisecond
	}
	return opts, nil
}
