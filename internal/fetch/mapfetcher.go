package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// MapFetcher serves documents from memory. It is used as a deterministic
// stand-in for HTTPFetcher. It is safe for concurrent use.
type MapFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errors map[string]error
	calls  []string
}

// NewMapFetcher returns a MapFetcher serving pages, keyed by URL.
func NewMapFetcher(pages map[string]string) *MapFetcher {
	m := &MapFetcher{
		pages:  make(map[string]string, len(pages)),
		errors: make(map[string]error),
	}
	for k, v := range pages {
		m.pages[k] = v
	}
	return m
}

// SetPage registers body for url.
func (m *MapFetcher) SetPage(url, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = body
}

// SetError makes fetches of url fail with err.
func (m *MapFetcher) SetError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[url] = err
}

// Calls returns the URLs fetched so far, in call order.
func (m *MapFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Fetch returns the registered page. Unknown URLs fail with a 404 status error.
func (m *MapFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)

	if err, ok := m.errors[url]; ok {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	body, ok := m.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %d", ErrFetchFailed, ErrUnexpectedStatus, http.StatusNotFound)
	}
	return &Response{
		URL:         url,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Header:      http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:        []byte(body),
	}, nil
}
