package model

import (
	"time"
	"unicode/utf8"
)

// DefaultMaxTextLength is the default bound, in runes, on PageData.Text.
const DefaultMaxTextLength = 10000

// PageData is one successfully fetched and parsed page.
// It is created once per page and never modified after being appended
// to a CrawlResult.
type PageData struct {
	// URL is the normalized absolute URL of the page.
	URL string `json:"url"`

	// Title is the content of the <title> element.
	Title string `json:"title"`

	// Text is the extracted plain text, bounded by TruncateText.
	Text string `json:"text"`

	// Links holds the page's outgoing http(s) links, resolved, normalized
	// and deduplicated. Self-references are excluded.
	Links []string `json:"links"`

	// Depth is the BFS depth at which the page was crawled (0 = seed).
	Depth int `json:"depth"`

	// ScrapedAt is when the page was parsed.
	ScrapedAt time.Time `json:"scrapedAt"`

	// Meta holds description and keywords when the page declares them.
	Meta *Meta `json:"meta,omitempty"`
}

// Meta holds the page's descriptive meta tags.
type Meta struct {
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
}

// IsEmpty reports whether no meta value is set.
func (m *Meta) IsEmpty() bool {
	return m == nil || (m.Description == "" && m.Keywords == "")
}

// TruncateText cuts Text to at most maxRunes runes.
// A non-positive maxRunes falls back to DefaultMaxTextLength.
func (p *PageData) TruncateText(maxRunes int) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxTextLength
	}
	if utf8.RuneCountInString(p.Text) <= maxRunes {
		return
	}
	runes := []rune(p.Text)
	p.Text = string(runes[:maxRunes])
}
