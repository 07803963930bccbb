package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultMaxBodySize limits the bytes read from one response.
const DefaultMaxBodySize = 5 * 1024 * 1024

// DefaultUserAgent identifies the crawler in requests.
const DefaultUserAgent = "crawlscope/1.0 (+https://github.com/nao1215/crawlscope)"

// Response is a successfully fetched HTML document.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the media type without parameters.
	ContentType string

	// Header holds the response headers.
	Header http.Header

	// Body is the document decoded to UTF-8.
	Body []byte
}

// Fetcher retrieves an HTML document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher fetches documents over HTTP.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64

	// siteHeaders maps a lowercased host to extra request headers.
	siteHeaders map[string]http.Header
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the body size limit. Non-positive values are ignored.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithSiteHeaders adds headers to requests for specific hosts.
// Keys are host names; "*" applies to every host, before host-specific ones.
func WithSiteHeaders(headers map[string]http.Header) Option {
	return func(f *HTTPFetcher) {
		f.siteHeaders = make(map[string]http.Header, len(headers))
		for host, h := range headers {
			f.siteHeaders[strings.ToLower(host)] = h.Clone()
		}
	}
}

// NewHTTPFetcher returns an HTTPFetcher using client.
// A nil client uses NewHTTPClient with default options.
func NewHTTPFetcher(client *http.Client, opts ...Option) *HTTPFetcher {
	if client == nil {
		client, _ = NewHTTPClient(ClientOptions{}) //nolint:errcheck // no proxy, cannot fail
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// UserAgent returns the configured User-Agent.
func (f *HTTPFetcher) UserAgent() string {
	return f.userAgent
}

// Fetch performs a GET request and returns the decoded HTML body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	f.applySiteHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w: %d", ErrFetchFailed, ErrUnexpectedStatus, resp.StatusCode)
	}

	rawType := resp.Header.Get("Content-Type")
	mediaType := mediaTypeOf(rawType)
	if !IsHTMLContentType(mediaType) {
		return nil, fmt.Errorf("%w: %w: %q", ErrFetchFailed, ErrNotHTML, mediaType)
	}

	// Read one byte past the limit to detect oversize bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %w: limit %d bytes", ErrFetchFailed, ErrBodyTooLarge, f.maxBodySize)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType,
		Header:      resp.Header,
		Body:        decodeUTF8(body, rawType),
	}, nil
}

// applySiteHeaders adds configured headers for the request host.
func (f *HTTPFetcher) applySiteHeaders(req *http.Request) {
	for _, key := range []string{"*", strings.ToLower(req.URL.Hostname())} {
		for name, values := range f.siteHeaders[key] {
			req.Header.Del(name)
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}
	}
}

// IsHTMLContentType reports whether mediaType is an HTML type.
func IsHTMLContentType(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// mediaTypeOf strips parameters from a Content-Type header value.
func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// decodeUTF8 converts body to UTF-8. Undecodable bodies are returned as is.
func decodeUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}
