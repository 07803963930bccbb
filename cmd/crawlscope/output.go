package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/report"
	"github.com/spf13/cobra"
)

// errConflictingFormats is returned when both --json and --markdown are set.
var errConflictingFormats = errors.New("--json and --markdown cannot be used together")

// reportOptions selects how a job is rendered.
type reportOptions struct {
	JSON     bool
	Markdown bool
	Verbose  bool
	File     string
}

// addReportFlags registers the report output flags on cmd.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output the report as JSON")
	cmd.Flags().Bool("markdown", false, "Output the report as Markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
}

// getReportOptions reads the report flags of cmd.
func getReportOptions(cmd *cobra.Command, verbose bool) (reportOptions, error) {
	var (
		opts = reportOptions{Verbose: verbose}
		err  error
	)
	if opts.JSON, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.Markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.File, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.JSON && opts.Markdown {
		return opts, errConflictingFormats
	}
	return opts, nil
}

// newReportWriter returns the writer selected by opts.
func newReportWriter(w io.Writer, opts reportOptions) report.Writer {
	switch {
	case opts.JSON:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case opts.Markdown:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w,
			report.WithVerbose(opts.Verbose),
			report.WithShowEmpty(opts.Verbose),
		)
	}
}

// openOutput returns the destination for a report: the file named by path,
// created with owner-only permissions, or stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// writeReport renders job as selected by opts. A report written to a file
// is followed by the text summary on stdout.
func writeReport(cmd *cobra.Command, job *model.Job, opts reportOptions) (err error) {
	out, closeOut, err := openOutput(cmd, opts.File)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	w := newReportWriter(out, opts)
	if opts.File != "" {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(cmd.OutOrStdout()))
	}
	if _, err := w.Write(job); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
