package model

import (
	"encoding/json"
	"time"
)

// BatchError records one URL of a batch scrape that failed.
type BatchError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchStats summarizes a batch scrape.
type BatchStats struct {
	Total    int           `json:"total"`
	Success  int           `json:"success"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON encodes the stats with Duration in milliseconds.
func (s BatchStats) MarshalJSON() ([]byte, error) {
	type alias BatchStats
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration"`
	}{
		alias:    alias(s),
		Duration: s.Duration.Milliseconds(),
	})
}

// BatchResult is the outcome of a batch scrape. Results and Errors are in
// completion order, not input order; match them to inputs by URL.
type BatchResult struct {
	Results []PageData   `json:"results"`
	Stats   BatchStats   `json:"stats"`
	Errors  []BatchError `json:"errors"`
}
