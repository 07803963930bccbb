package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/crawlscope/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the job in Markdown format.
func (w *MarkdownWriter) Write(job *model.Job) (int, error) {
	return w.WriteSummary(NewSummary(job))
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeDepths(md, s)
	w.writePages(md, s)
	w.writeErrors(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Start URL", "`" + s.StartURL + "`"},
	}
	if s.JobID != "" {
		rows = append(rows, []string{"Job", "`" + s.JobID + "`"})
	}
	if s.Strategy != "" {
		rows = append(rows, []string{"Strategy", string(s.Strategy)})
	}
	rows = append(rows,
		[]string{"Started", s.StartTime.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", s.Duration.Round(time.Millisecond).String()},
		[]string{"Pages Scraped", strconv.Itoa(s.PagesScraped)},
		[]string{"Links Discovered", strconv.Itoa(s.LinksDiscovered)},
		[]string{"Errors", strconv.Itoa(s.ErrorCount)},
		[]string{"Status", w.statusText(s)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

func (w *MarkdownWriter) statusText(s *Summary) string {
	switch s.Status {
	case model.JobCompleted:
		return "✅ Completed"
	case model.JobFailed:
		return "❌ Failed - " + s.Error
	default:
		return "⏳ " + string(s.Status)
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Status == model.JobFailed:
		md.Cautionf("The crawl failed: %s", s.Error)
	case s.Status != model.JobCompleted:
		md.Note("The crawl has not finished; counters are a live snapshot.")
	case s.PagesScraped == 0:
		md.Warning("The crawl completed without scraping any page.")
	case s.ErrorCount > 0:
		md.Importantf("%d URL(s) could not be scraped. See the errors section.", s.ErrorCount)
	default:
		md.Tip("All queued pages were scraped without errors.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, s *Summary) {
	if len(s.PagesByDepth) == 0 {
		return
	}
	md.H2("Pages by Depth")
	md.PlainText("")

	rows := make([][]string, len(s.PagesByDepth))
	for i, d := range s.PagesByDepth {
		rows[i] = []string{strconv.Itoa(d.Depth), strconv.Itoa(d.Pages)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(s.PagesByDepth) > 1 {
		w.writePieChart(md, s)
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Depth"),
		piechart.WithShowData(true),
	)
	for _, d := range s.PagesByDepth {
		chart.LabelAndIntValue("Depth "+strconv.Itoa(d.Depth), uint64(d.Pages))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, s *Summary) {
	md.H2("Pages")
	md.PlainText("")

	if len(s.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Pages))
	for i, p := range s.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(p.Depth),
			truncateString(p.URL, 80),
			truncateString(title, 50),
			strconv.Itoa(p.Links),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Title", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, s *Summary) {
	if len(s.Errors) == 0 {
		return
	}
	md.H2("Errors")
	md.PlainText("")

	rows := make([][]string, len(s.Errors))
	for i, e := range s.Errors {
		rows[i] = []string{
			truncateString(e.URL, 80),
			truncateString(e.Error, 80),
			e.Timestamp.Format("15:04:05"),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error", "Time"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [crawlscope](https://github.com/nao1215/crawlscope)*")
}

// truncateString cuts s to maxLen runes, ending with "..." when shortened.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
