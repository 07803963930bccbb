package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/report"
	"github.com/spf13/cobra"
)

func newReportTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	addReportFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

func TestGetReportOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    reportOptions
		wantErr error
	}{
		{"default", nil, reportOptions{}, nil},
		{"json", []string{"--json"}, reportOptions{JSON: true}, nil},
		{"markdown to file", []string{"--markdown", "-o", "r.md"}, reportOptions{Markdown: true, File: "r.md"}, nil},
		{"both formats", []string{"--json", "--markdown"}, reportOptions{}, errConflictingFormats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := getReportOptions(newReportTestCmd(t, tt.args...), false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	if _, ok := newReportWriter(&sb, reportOptions{JSON: true}).(*report.FullJSONWriter); !ok {
		t.Error("expected FullJSONWriter for JSON")
	}
	if _, ok := newReportWriter(&sb, reportOptions{Markdown: true}).(*report.MarkdownWriter); !ok {
		t.Error("expected MarkdownWriter for Markdown")
	}
	if _, ok := newReportWriter(&sb, reportOptions{}).(*report.SimpleWriter); !ok {
		t.Error("expected SimpleWriter by default")
	}
}

func TestWriteReportStdout(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	cmd := newReportTestCmd(t)
	cmd.SetOut(&sb)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(2 * time.Second)
	j := &model.Job{
		ID:        "job-1",
		Status:    model.JobCompleted,
		StartTime: start,
		EndTime:   &end,
		Options:   model.CrawlOptions{StartURL: "https://example.com/", Strategy: model.StrategyDomain, MaxDepth: 1, MaxPages: 1},
		Result:    &model.CrawlResult{Pages: []model.PageData{}, Errors: []model.CrawlError{}},
	}
	if err := writeReport(cmd, j, reportOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sb.String(), "https://example.com/") {
		t.Errorf("expected start URL in report, got:\n%s", sb.String())
	}
}
