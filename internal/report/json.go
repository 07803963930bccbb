package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/crawlscope/internal/model"
)

// JSONWriter outputs jobs as JSON, in the same shape the HTTP API uses.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the job, pages included.
func (w *JSONWriter) Write(job *model.Job) (int, error) {
	return w.writeJSON(job)
}

// WriteSummary outputs the summary.
func (w *JSONWriter) WriteSummary(summary *Summary) (int, error) {
	return w.writeJSON(summaryJSON{Summary: summary, Duration: summary.Duration.Milliseconds()})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// summaryJSON adds the duration in milliseconds to a Summary.
type summaryJSON struct {
	*Summary
	Duration int64 `json:"duration"`
}

// JSONReport wraps a job with the version of the tool that produced it.
type JSONReport struct {
	Version string      `json:"version"`
	Job     *model.Job  `json:"job"`
	Summary summaryJSON `json:"summary"`
}

// FullJSONWriter outputs jobs wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the job wrapped with version and summary.
func (w *FullJSONWriter) Write(job *model.Job) (int, error) {
	s := NewSummary(job)
	return w.writeJSON(JSONReport{
		Version: w.version,
		Job:     job,
		Summary: summaryJSON{Summary: s, Duration: s.Duration.Milliseconds()},
	})
}
