package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/crawlscope/internal/job"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/ratelimit"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Jobs is the job manager surface used by the API. *job.Manager satisfies it.
type Jobs interface {
	CreateJob(ctx context.Context, opts model.CrawlOptions) (string, error)
	GetJobStatus(ctx context.Context, id string) (*model.JobSnapshot, error)
	CompletedJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]*model.JobSnapshot, error)
	DeleteJob(ctx context.Context, id string) (bool, error)
}

// Scraper scrapes one page. *scrape.Scraper satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, timeout time.Duration) (*model.PageData, error)
}

// BatchRunner scrapes a list of pages. *batch.Processor satisfies it.
type BatchRunner interface {
	Process(ctx context.Context, urls []string, concurrency int) *model.BatchResult
}

// LimiterStats reports rate limiter load. *ratelimit.Group satisfies it.
type LimiterStats interface {
	Stats() ratelimit.Stats
}

// Server serves the HTTP API.
type Server struct {
	jobs     Jobs
	scraper  Scraper
	batch    BatchRunner
	limiter  LimiterStats
	limits   Limits
	defaults CrawlDefaults
	version  string
	logger   *slog.Logger
	now      func() time.Time

	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLimits sets the bounds applied to client-supplied values.
func WithLimits(l Limits) Option {
	return func(s *Server) {
		s.limits = l
	}
}

// WithCrawlDefaults sets the values used for omitted crawl options.
func WithCrawlDefaults(d CrawlDefaults) Option {
	return func(s *Server) {
		s.defaults = d
	}
}

// WithLimiterStats adds rate limiter counters to /health.
func WithLimiterStats(l LimiterStats) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithVersion adds the build version to /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeouts sets the header read timeout and the graceful shutdown
// bound used by Serve. Non-positive values keep the defaults.
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(s *Server) {
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithClock overrides the time source for /health.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer returns a Server.
func NewServer(jobs Jobs, scraper Scraper, batch BatchRunner, opts ...Option) *Server {
	s := &Server{
		jobs:     jobs,
		scraper:  scraper,
		batch:    batch,
		limits:   DefaultLimits(),
		defaults: DefaultCrawlDefaults(),
		logger:   slog.Default(),
		now:      time.Now,

		readHeaderTimeout: defaultReadHeaderTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("POST /api/scrape/batch", s.handleBatch)
	mux.HandleFunc("POST /api/crawl", s.handleCreateCrawl)
	mux.HandleFunc("GET /api/crawl", s.handleListCrawls)
	mux.HandleFunc("GET /api/crawl/{id}", s.handleCrawlStatus)
	mux.HandleFunc("GET /api/crawl/{id}/result", s.handleCrawlResult)
	mux.HandleFunc("DELETE /api/crawl/{id}", s.handleDeleteCrawl)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.recoverer(s.logRequests(mux))
}

// handleScrape scrapes a single page.
//
//	curl -X POST localhost:8080/api/scrape -d '{"url":"https://example.com"}'
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	target, err := validateURL(req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	page, err := s.scraper.Scrape(r.Context(), target, min(s.defaults.Timeout, s.limits.MaxTimeout))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleBatch scrapes up to Limits.MaxBatchURLs pages. Results and errors
// are in completion order.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.URLs) == 0 {
		s.writeError(w, fmt.Errorf("%w: urls must not be empty", errInvalidRequest))
		return
	}
	if len(req.URLs) > s.limits.MaxBatchURLs {
		s.writeError(w, fmt.Errorf("%w: at most %d urls per batch", errInvalidRequest, s.limits.MaxBatchURLs))
		return
	}
	concurrency, err := bounded("concurrency", req.Concurrency, s.defaults.Concurrency, s.limits.MaxConcurrency)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.batch.Process(r.Context(), req.URLs, concurrency))
}

// handleCreateCrawl starts a crawl job and returns its id.
func (s *Server) handleCreateCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := req.crawlOptions(s.defaults, s.limits)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.jobs.CreateJob(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/crawl/"+id)
	writeJSON(w, http.StatusAccepted, crawlAccepted{JobID: id, Status: model.JobPending})
}

func (s *Server) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.GetJobStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCrawlResult(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.CompletedJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteCrawl(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := s.jobs.DeleteJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", job.ErrJobNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status      string           `json:"status"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version,omitempty"`
	RateLimiter *ratelimit.Stats `json:"rateLimiter,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: s.now().UTC(), Version: s.version}
	if s.limiter != nil {
		stats := s.limiter.Stats()
		resp.RateLimiter = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errInvalidRequest)
		}
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if code == CodeInternal {
		s.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
