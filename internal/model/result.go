package model

import (
	"encoding/json"
	"time"
)

// CrawlError records a queued URL that failed fetch, parse or validation
// after passing the crawl rules. It never aborts the crawl.
type CrawlError struct {
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// CrawlResult is the aggregate outcome of one traversal.
// It is built by the engine and treated as immutable once attached to a Job.
type CrawlResult struct {
	PagesScraped    int           `json:"pagesScraped"`
	LinksDiscovered int           `json:"linksDiscovered"`
	Duration        time.Duration `json:"-"`
	Errors          []CrawlError  `json:"errors"`
	Pages           []PageData    `json:"pages"`
}

// MarshalJSON encodes the result with Duration in milliseconds.
func (r CrawlResult) MarshalJSON() ([]byte, error) {
	type alias CrawlResult
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration"`
	}{
		alias:    alias(r),
		Duration: r.Duration.Milliseconds(),
	})
}

// UnmarshalJSON decodes a result whose duration is given in milliseconds.
func (r *CrawlResult) UnmarshalJSON(data []byte) error {
	type alias CrawlResult
	var raw struct {
		alias
		Duration int64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = CrawlResult(raw.alias)
	r.Duration = time.Duration(raw.Duration) * time.Millisecond
	return nil
}

// PagesByDepth counts pages per crawl depth.
func (r *CrawlResult) PagesByDepth() map[int]int {
	counts := make(map[int]int)
	for _, p := range r.Pages {
		counts[p.Depth]++
	}
	return counts
}

// Clone returns a deep copy of the result.
func (r *CrawlResult) Clone() *CrawlResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Errors = append([]CrawlError(nil), r.Errors...)
	c.Pages = make([]PageData, len(r.Pages))
	for i, p := range r.Pages {
		p.Links = append([]string(nil), p.Links...)
		if p.Meta != nil {
			m := *p.Meta
			p.Meta = &m
		}
		c.Pages[i] = p
	}
	return &c
}
