package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/crawlscope/internal/batch"
	"github.com/nao1215/crawlscope/internal/engine"
	"github.com/nao1215/crawlscope/internal/fetch"
	"github.com/nao1215/crawlscope/internal/job"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/parse"
	"github.com/nao1215/crawlscope/internal/ratelimit"
	"github.com/nao1215/crawlscope/internal/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homePage = `<html><head><title>Home</title><meta name="description" content="welcome"></head>` +
	`<body><p>Hello</p><a href="/a">A</a><a href="/b">B</a></body></html>`

type fixture struct {
	server  *httptest.Server
	fetcher *fetch.MapFetcher
	manager *job.Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	fetcher := fetch.NewMapFetcher(map[string]string{
		"https://example.com/":  homePage,
		"https://example.com/a": `<html><head><title>A</title></head><body>a</body></html>`,
		"https://example.com/b": `<html><head><title>B</title></head><body>b</body></html>`,
	})
	fetcher.SetError("https://example.com/down", errors.New("connection refused"))

	scraper := scrape.New(fetcher, parse.NewHTMLParser(parse.WithoutTrafilatura()))
	manager := job.NewManager(engine.New(scraper))
	s := NewServer(manager, scraper, batch.NewProcessor(scraper), opts...)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		manager.Wait()
	})
	return &fixture{server: srv, fetcher: fetcher, manager: manager}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, f.server.URL+path, r)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestScrapeEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("scrapes page", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/scrape", `{"url":"https://example.com"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var page model.PageData
		require.NoError(t, json.Unmarshal(data, &page))
		assert.Equal(t, "https://example.com/", page.URL)
		assert.Equal(t, "Home", page.Title)
		assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, page.Links)
		require.NotNil(t, page.Meta)
		assert.Equal(t, "welcome", page.Meta.Description)
	})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "invalid url", body: `{"url":"not a url"}`, status: http.StatusBadRequest, code: CodeInvalidURL},
		{name: "missing url", body: `{}`, status: http.StatusBadRequest, code: CodeInvalidURL},
		{name: "non-http url", body: `{"url":"ftp://example.com/"}`, status: http.StatusBadRequest, code: CodeInvalidURL},
		{name: "malformed json", body: `{"url":`, status: http.StatusBadRequest, code: CodeInvalidRequest},
		{name: "fetch failure", body: `{"url":"https://example.com/down"}`, status: http.StatusInternalServerError, code: CodeFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodPost, "/api/scrape", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			e := decodeError(t, data)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithLimits(Limits{MaxDepth: 10, MaxPages: 1000, MaxConcurrency: 20, MaxTimeout: time.Minute, MaxBatchURLs: 3}))

	t.Run("mixed results", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/scrape/batch",
			`{"urls":["https://example.com/a","https://example.com/down","https://example.com/b"],"concurrency":2}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var result model.BatchResult
		require.NoError(t, json.Unmarshal(data, &result))
		assert.Equal(t, 3, result.Stats.Total)
		assert.Equal(t, 2, result.Stats.Success)
		assert.Equal(t, 1, result.Stats.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "https://example.com/down", result.Errors[0].URL)
	})

	t.Run("too many urls", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/scrape/batch",
			`{"urls":["https://a.com","https://b.com","https://c.com","https://d.com"]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidRequest, decodeError(t, data).Code)
	})

	t.Run("empty list", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/scrape/batch", `{"urls":[]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/scrape/batch", `{"urls":["https://example.com/a"],"concurrency":0}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCrawlEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, data := f.do(t, http.MethodPost, "/api/crawl", `{"startUrl":"https://example.com","maxDepth":2,"maxPages":5}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))

	var accepted struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &accepted))
	assert.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "pending", accepted.Status)
	assert.Equal(t, "/api/crawl/"+accepted.JobID, resp.Header.Get("Location"))

	f.manager.Wait()

	t.Run("status", func(t *testing.T) {
		resp, data := f.do(t, http.MethodGet, "/api/crawl/"+accepted.JobID, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var snap map[string]any
		require.NoError(t, json.Unmarshal(data, &snap))
		assert.Equal(t, "completed", snap["status"])
		assert.NotContains(t, snap, "result")
		metrics, ok := snap["metrics"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 3, metrics["pagesScraped"])
	})

	t.Run("result", func(t *testing.T) {
		resp, data := f.do(t, http.MethodGet, "/api/crawl/"+accepted.JobID+"/result", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var j model.Job
		require.NoError(t, json.Unmarshal(data, &j))
		require.NotNil(t, j.Result)
		assert.Equal(t, 3, j.Result.PagesScraped)
		assert.Equal(t, 2, j.Options.MaxDepth)
	})

	t.Run("list", func(t *testing.T) {
		resp, data := f.do(t, http.MethodGet, "/api/crawl", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), accepted.JobID)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp, data := f.do(t, http.MethodGet, "/api/crawl/nope", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeJobNotFound, decodeError(t, data).Code)

		resp, _ = f.do(t, http.MethodGet, "/api/crawl/nope/result", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, "/api/crawl/"+accepted.JobID, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = f.do(t, http.MethodDelete, "/api/crawl/"+accepted.JobID, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// blockingJobs reports every job as running.
type blockingJobs struct{ *job.Manager }

func (blockingJobs) CompletedJob(_ context.Context, id string) (*model.Job, error) {
	return nil, fmt.Errorf("%w: job %s is running", job.ErrJobNotReady, id)
}

func TestCrawlResultNotReady(t *testing.T) {
	t.Parallel()

	s := NewServer(blockingJobs{job.NewManager(nil)}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/crawl/abc/result", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeJobNotReady, decodeError(t, rec.Body.Bytes()).Code)
}

func TestCreateCrawlValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "invalid url", body: `{"startUrl":"::"}`, code: CodeInvalidURL},
		{name: "unknown strategy", body: `{"startUrl":"https://example.com","strategy":"galaxy"}`, code: CodeInvalidRequest},
		{name: "zero depth", body: `{"startUrl":"https://example.com","maxDepth":0}`, code: CodeInvalidRequest},
		{name: "negative pages", body: `{"startUrl":"https://example.com","maxPages":-1}`, code: CodeInvalidRequest},
		{name: "zero timeout", body: `{"startUrl":"https://example.com","timeout":0}`, code: CodeInvalidRequest},
		{name: "empty body", body: ``, code: CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodPost, "/api/crawl", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Code)
		})
	}
}

func TestCrawlOptionsClamping(t *testing.T) {
	t.Parallel()

	depth, pages, conc := 50, 5000, 99
	timeout := int64(120000)
	req := crawlRequest{StartURL: "https://Example.com/x/", MaxDepth: &depth, MaxPages: &pages, Concurrency: &conc, Timeout: &timeout}

	opts, err := req.crawlOptions(DefaultCrawlDefaults(), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, model.CrawlOptions{
		StartURL:    "https://example.com/x",
		Strategy:    model.StrategyDomain,
		MaxDepth:    10,
		MaxPages:    1000,
		Concurrency: 20,
		Timeout:     time.Minute,
	}, opts)

	t.Run("defaults", func(t *testing.T) {
		opts, err := crawlRequest{StartURL: "https://example.com", Strategy: "all"}.crawlOptions(DefaultCrawlDefaults(), DefaultLimits())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyAll, opts.Strategy)
		assert.Equal(t, 3, opts.MaxDepth)
		assert.Equal(t, 100, opts.MaxPages)
		assert.Equal(t, 5, opts.Concurrency)
		assert.Equal(t, 10*time.Second, opts.Timeout)
	})

	t.Run("huge timeout is clamped", func(t *testing.T) {
		for _, ms := range []int64{1e13, math.MaxInt64} {
			huge := ms
			opts, err := crawlRequest{StartURL: "https://example.com", Timeout: &huge}.crawlOptions(DefaultCrawlDefaults(), DefaultLimits())
			require.NoError(t, err)
			assert.Equal(t, time.Minute, opts.Timeout, "timeout %d", ms)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	group := ratelimit.NewGroup(ratelimit.DefaultOptions(), true)
	defer group.Close()
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithLimiterStats(group), WithVersion("v1.2.3"), WithClock(func() time.Time { return fixed }))

	resp, data := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2025-06-01T00:00:00Z","version":"v1.2.3","rateLimiter":{"running":0,"queued":0,"limiters":0}}`, string(data))
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/scrape", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type panickingScraper struct{}

func (panickingScraper) Scrape(context.Context, string, time.Duration) (*model.PageData, error) {
	panic("scraper exploded")
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, panickingScraper{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString(`{"url":"https://example.com"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, "Internal Server Error", e.Error)
}

func TestServeShutsDownWithContext(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
