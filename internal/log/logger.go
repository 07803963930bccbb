package log

import (
	"io"
	"log/slog"
	"strings"
)

// Format names accepted by Options.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the level from Info to Debug.
	Verbose bool

	// Format is "text" (default) or "json".
	Format string
}

// NewLogger builds a logger that writes masked records to w.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, FormatJSON) {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
