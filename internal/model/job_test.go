package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestJobStatusTransitions tests the forward-only state machine.
func TestJobStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to running", JobPending, JobRunning, true},
		{"pending to failed", JobPending, JobFailed, true},
		{"running to completed", JobRunning, JobCompleted, true},
		{"running to failed", JobRunning, JobFailed, true},
		{"pending to completed skips running", JobPending, JobCompleted, false},
		{"running back to pending", JobRunning, JobPending, false},
		{"completed to running", JobCompleted, JobRunning, false},
		{"failed to completed", JobFailed, JobCompleted, false},
		{"completed to completed", JobCompleted, JobCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestJobStatusIsTerminal tests terminal state detection.
func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if JobPending.IsTerminal() || JobRunning.IsTerminal() {
		t.Error("pending and running must not be terminal")
	}
	if !JobCompleted.IsTerminal() || !JobFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
}

// TestJobClone tests that Clone does not share mutable state.
func TestJobClone(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 1, 1, 0, 0, 10, 0, time.UTC)
	job := &Job{
		ID:      "job-1",
		Status:  JobCompleted,
		EndTime: &end,
		Result: &CrawlResult{
			Pages: []PageData{{URL: "https://example.com/", Links: []string{"https://example.com/a"}, Meta: &Meta{Description: "d"}}},
		},
	}

	clone := job.Clone()
	clone.Result.Pages[0].Links[0] = "changed"
	clone.Result.Pages[0].Meta.Description = "changed"
	*clone.EndTime = end.Add(time.Hour)

	if job.Result.Pages[0].Links[0] != "https://example.com/a" {
		t.Error("clone shares links slice with original")
	}
	if job.Result.Pages[0].Meta.Description != "d" {
		t.Error("clone shares meta with original")
	}
	if !job.EndTime.Equal(end) {
		t.Error("clone shares end time with original")
	}
}

// TestJobSnapshotJSON tests the status view encoding.
func TestJobSnapshotJSON(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	job := &Job{
		ID:        "job-1",
		Status:    JobCompleted,
		StartTime: start,
		EndTime:   &end,
		Options:   CrawlOptions{StartURL: "https://example.com/", Strategy: StrategyDomain, MaxDepth: 2, MaxPages: 5, Concurrency: 1, Timeout: 3 * time.Second},
		Result:    &CrawlResult{Pages: []PageData{{URL: "https://example.com/"}}},
	}

	data, err := json.Marshal(job.Snapshot(end))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	got := string(data)

	for _, want := range []string{`"jobId":"job-1"`, `"duration":1500`, `"timeout":3000`, `"status":"completed"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
	if strings.Contains(got, `"pages"`) {
		t.Errorf("snapshot must not include pages: %s", got)
	}
}

// TestCrawlOptionsJSON tests the millisecond timeout encoding.
func TestCrawlOptionsJSON(t *testing.T) {
	t.Parallel()

	var opts CrawlOptions
	if err := json.Unmarshal([]byte(`{"startUrl":"https://a.com","strategy":"all","maxDepth":3,"maxPages":10,"concurrency":2,"timeout":2500}`), &opts); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if opts.Timeout != 2500*time.Millisecond {
		t.Errorf("expected 2.5s timeout, got %v", opts.Timeout)
	}
	if opts.Strategy != StrategyAll || !opts.Strategy.Valid() {
		t.Errorf("unexpected strategy %q", opts.Strategy)
	}
	if Strategy("bogus").Valid() {
		t.Error("unknown strategy must be invalid")
	}
}
