package report

import (
	"sort"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
)

// Summary is the condensed view of a crawl job that every writer renders.
type Summary struct {
	JobID           string             `json:"jobId"`
	StartURL        string             `json:"startUrl"`
	Strategy        model.Strategy     `json:"strategy"`
	Status          model.JobStatus    `json:"status"`
	StartTime       time.Time          `json:"startTime"`
	Duration        time.Duration      `json:"-"`
	PagesScraped    int                `json:"pagesScraped"`
	LinksDiscovered int                `json:"linksDiscovered"`
	ErrorCount      int                `json:"errorCount"`
	DepthReached    int                `json:"depthReached"`
	PagesByDepth    []DepthCount       `json:"pagesByDepth"`
	Pages           []PageLine         `json:"pages"`
	Errors          []model.CrawlError `json:"errors"`
	Error           string             `json:"error,omitempty"`
}

// DepthCount is the number of pages crawled at one depth.
type DepthCount struct {
	Depth int `json:"depth"`
	Pages int `json:"pages"`
}

// PageLine is one crawled page without its text.
type PageLine struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Depth int    `json:"depth"`
	Links int    `json:"links"`
}

// NewSummary condenses job. Jobs without a result produce a summary with
// counters only.
func NewSummary(job *model.Job) *Summary {
	s := &Summary{
		JobID:           job.ID,
		StartURL:        job.Options.StartURL,
		Strategy:        job.Options.Strategy,
		Status:          job.Status,
		StartTime:       job.StartTime,
		PagesScraped:    job.Metrics.PagesScraped,
		LinksDiscovered: job.Metrics.LinksDiscovered,
		ErrorCount:      job.Metrics.Errors,
		DepthReached:    job.Metrics.CurrentDepth,
		PagesByDepth:    []DepthCount{},
		Pages:           []PageLine{},
		Errors:          []model.CrawlError{},
		Error:           job.Error,
	}
	if job.EndTime != nil {
		s.Duration = job.EndTime.Sub(job.StartTime)
	}

	r := job.Result
	if r == nil {
		return s
	}
	s.Duration = r.Duration
	s.PagesScraped = r.PagesScraped
	s.LinksDiscovered = r.LinksDiscovered
	s.ErrorCount = len(r.Errors)
	s.Errors = append(s.Errors, r.Errors...)

	for depth, n := range r.PagesByDepth() {
		s.PagesByDepth = append(s.PagesByDepth, DepthCount{Depth: depth, Pages: n})
		if depth > s.DepthReached {
			s.DepthReached = depth
		}
	}
	sort.Slice(s.PagesByDepth, func(i, j int) bool {
		return s.PagesByDepth[i].Depth < s.PagesByDepth[j].Depth
	})

	for _, p := range r.Pages {
		s.Pages = append(s.Pages, PageLine{URL: p.URL, Title: p.Title, Depth: p.Depth, Links: len(p.Links)})
	}
	return s
}

// Succeeded reports whether the crawl completed without page errors.
func (s *Summary) Succeeded() bool {
	return s.Status == model.JobCompleted && s.ErrorCount == 0
}
