package report

import (
	"io"

	"github.com/nao1215/crawlscope/internal/model"
)

// Writer renders crawl jobs to an output destination.
type Writer interface {
	// Write renders the full job and returns the number of bytes written.
	Write(job *model.Job) (int, error)

	// WriteSummary renders only the condensed summary.
	WriteSummary(summary *Summary) (int, error)
}

// MultiWriter writes to several Writers in order, stopping at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders job with every writer and returns the total bytes written.
func (m *MultiWriter) Write(job *model.Job) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(job)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary renders summary with every writer.
func (m *MultiWriter) WriteSummary(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
