package model

// JobMetrics is a read-only snapshot of a crawl's counters.
type JobMetrics struct {
	// PagesScraped counts successfully parsed pages.
	PagesScraped int `json:"pagesScraped"`

	// LinksDiscovered is the sum of per-page link counts. Links seen on
	// several pages are counted once per page.
	LinksDiscovered int `json:"linksDiscovered"`

	// Errors counts recorded CrawlErrors.
	Errors int `json:"errors"`

	// CurrentDepth is the deepest level reached so far.
	CurrentDepth int `json:"currentDepth"`
}
