package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
)

// SimpleWriter outputs plain-text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints the page and error sections even when empty.
	showEmpty bool

	// verbose lists every page instead of only the per-depth counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every crawled page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the job in human-readable format.
func (w *SimpleWriter) Write(job *model.Job) (int, error) {
	return w.WriteSummary(NewSummary(job))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeDepths(&sb, s)
	w.writePages(&sb, s)
	w.writeErrors(&sb, s)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CRAWLSCOPE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:        %s\n", s.StartURL)
	if s.JobID != "" {
		fmt.Fprintf(sb, "Job:              %s\n", s.JobID)
	}
	if s.Strategy != "" {
		fmt.Fprintf(sb, "Strategy:         %s\n", s.Strategy)
	}
	fmt.Fprintf(sb, "Started:          %s\n", s.StartTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:         %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages Scraped:    %d\n", s.PagesScraped)
	fmt.Fprintf(sb, "Links Discovered: %d\n", s.LinksDiscovered)
	fmt.Fprintf(sb, "Errors:           %d\n", s.ErrorCount)

	switch {
	case s.Status == model.JobFailed:
		fmt.Fprintf(sb, "Status:           FAILED - %s\n", s.Error)
	case s.Status != model.JobCompleted:
		fmt.Fprintf(sb, "Status:           %s\n", strings.ToUpper(string(s.Status)))
	default:
		sb.WriteString("Status:           Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeDepths(sb *strings.Builder, s *Summary) {
	if len(s.PagesByDepth) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "PAGES BY DEPTH")
	if len(s.PagesByDepth) == 0 {
		sb.WriteString("  No pages crawled\n\n")
		return
	}
	for _, d := range s.PagesByDepth {
		fmt.Fprintf(sb, "  depth %d: %d\n", d.Depth, d.Pages)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, s *Summary) {
	if !w.verbose {
		return
	}
	if len(s.Pages) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "PAGES")
	if len(s.Pages) == 0 {
		sb.WriteString("  No pages crawled\n\n")
		return
	}
	for _, p := range s.Pages {
		fmt.Fprintf(sb, "  [%d] %s\n", p.Depth, p.URL)
		if p.Title != "" {
			fmt.Fprintf(sb, "      Title: %s\n", p.Title)
		}
		fmt.Fprintf(sb, "      Links: %d\n", p.Links)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, s *Summary) {
	if len(s.Errors) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "ERRORS")
	if len(s.Errors) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, e := range s.Errors {
		fmt.Fprintf(sb, "  [!] %s\n", e.URL)
		fmt.Fprintf(sb, "      %s\n", e.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by crawlscope\n")
	sb.WriteString("https://github.com/nao1215/crawlscope\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
