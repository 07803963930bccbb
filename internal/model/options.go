package model

import (
	"encoding/json"
	"time"
)

// Strategy selects which discovered links a crawl may follow.
type Strategy string

const (
	// StrategyDomain restricts the crawl to the seed's host.
	StrategyDomain Strategy = "domain"

	// StrategySite restricts the crawl to the seed's registrable domain
	// (eTLD+1), so subdomains of the seed are followed as well.
	StrategySite Strategy = "site"

	// StrategyAll follows links to any host.
	StrategyAll Strategy = "all"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyDomain, StrategySite, StrategyAll:
		return true
	default:
		return false
	}
}

// CrawlOptions holds the immutable parameters of one crawl.
// Bounding MaxDepth and MaxPages to sane maxima is the boundary layer's job;
// the engine only requires them to be at least 1.
type CrawlOptions struct {
	// StartURL is the seed URL, crawled at depth 0.
	StartURL string `json:"startUrl"`

	// Strategy decides which hosts may be followed.
	Strategy Strategy `json:"strategy"`

	// MaxDepth is exclusive: pages are crawled at depths 0..MaxDepth-1.
	MaxDepth int `json:"maxDepth"`

	// MaxPages caps the number of successfully scraped pages.
	MaxPages int `json:"maxPages"`

	// Concurrency is the number of fetches the engine may run at once.
	Concurrency int `json:"concurrency"`

	// Timeout applies to each individual fetch, not to the whole crawl.
	Timeout time.Duration `json:"-"`
}

// crawlOptionsJSON is the wire form of CrawlOptions with the timeout in ms.
type crawlOptionsJSON struct {
	StartURL    string   `json:"startUrl"`
	Strategy    Strategy `json:"strategy"`
	MaxDepth    int      `json:"maxDepth"`
	MaxPages    int      `json:"maxPages"`
	Concurrency int      `json:"concurrency"`
	Timeout     int64    `json:"timeout"`
}

// MarshalJSON encodes the options with Timeout in milliseconds.
func (o CrawlOptions) MarshalJSON() ([]byte, error) {
	return json.Marshal(crawlOptionsJSON{
		StartURL:    o.StartURL,
		Strategy:    o.Strategy,
		MaxDepth:    o.MaxDepth,
		MaxPages:    o.MaxPages,
		Concurrency: o.Concurrency,
		Timeout:     o.Timeout.Milliseconds(),
	})
}

// UnmarshalJSON decodes options whose timeout is given in milliseconds.
func (o *CrawlOptions) UnmarshalJSON(data []byte) error {
	var raw crawlOptionsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = CrawlOptions{
		StartURL:    raw.StartURL,
		Strategy:    raw.Strategy,
		MaxDepth:    raw.MaxDepth,
		MaxPages:    raw.MaxPages,
		Concurrency: raw.Concurrency,
		Timeout:     time.Duration(raw.Timeout) * time.Millisecond,
	}
	return nil
}
