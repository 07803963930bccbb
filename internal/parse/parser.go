package parse

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/nao1215/crawlscope/internal/model"
)

// ErrParseFailed is returned when a document cannot be parsed at all.
var ErrParseFailed = errors.New("parse failed")

// Document is the information extracted from one page.
type Document struct {
	Title string
	Text  string

	// Links holds raw href values in document order, unresolved.
	Links []string

	Meta model.Meta
}

// Parser extracts a Document from an HTML body.
type Parser interface {
	Parse(body []byte, pageURL string) (*Document, error)
}

// HTMLParser is the default Parser.
type HTMLParser struct {
	// disableTrafilatura forces the plain body-text extraction.
	disableTrafilatura bool
}

// Option configures an HTMLParser.
type Option func(*HTMLParser)

// WithoutTrafilatura uses only the goquery body text for Document.Text.
func WithoutTrafilatura() Option {
	return func(p *HTMLParser) {
		p.disableTrafilatura = true
	}
}

// NewHTMLParser returns an HTMLParser.
func NewHTMLParser(opts ...Option) *HTMLParser {
	p := &HTMLParser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts title, text, links and meta tags from body.
func (p *HTMLParser) Parse(body []byte, pageURL string) (*Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", ErrParseFailed, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseFailed, pageURL, err)
	}

	result := &Document{
		Title: collapseSpace(doc.Find("title").First().Text()),
		Links: make([]string, 0),
	}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				result.Links = append(result.Links, href)
			}
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "description":
			if result.Meta.Description == "" {
				result.Meta.Description = strings.TrimSpace(content)
			}
		case "keywords":
			if result.Meta.Keywords == "" {
				result.Meta.Keywords = strings.TrimSpace(content)
			}
		}
	})

	if !p.disableTrafilatura {
		result.Text = extractMainText(body)
	}
	if result.Text == "" {
		result.Text = bodyText(doc)
	}

	return result, nil
}

// extractMainText returns trafilatura's content text, or "" when it
// finds no main content.
func extractMainText(body []byte) string {
	extracted, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
	if err != nil || extracted == nil {
		return ""
	}
	return collapseSpace(extracted.ContentText)
}

// bodyText returns the visible text of the document body.
func bodyText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body = body.Clone()
	body.Find("script, style, noscript, template").Remove()
	return collapseSpace(body.Text())
}

// collapseSpace replaces runs of whitespace with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FuncParser adapts a function to the Parser interface. It is used as a
// test double for the engine.
type FuncParser func(body []byte, pageURL string) (*Document, error)

// Parse calls f.
func (f FuncParser) Parse(body []byte, pageURL string) (*Document, error) {
	return f(body, pageURL)
}
