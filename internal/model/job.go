package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a crawl job.
// Statuses only move forward: pending → running → completed | failed.
type JobStatus string

const (
	// JobPending is the state of a job that has not started yet.
	JobPending JobStatus = "pending"

	// JobRunning is the state of a job whose crawl is in progress.
	JobRunning JobStatus = "running"

	// JobCompleted is the terminal state of a crawl that returned normally.
	JobCompleted JobStatus = "completed"

	// JobFailed is the terminal state of a crawl that could not run.
	JobFailed JobStatus = "failed"
)

// jobTransitions lists the allowed successor states of each status.
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobFailed},
	JobRunning: {JobCompleted, JobFailed},
}

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is the record of one asynchronous crawl.
// The job manager exclusively owns Job values; callers only see copies.
type Job struct {
	ID        string       `json:"jobId"`
	Status    JobStatus    `json:"status"`
	StartTime time.Time    `json:"startTime"`
	EndTime   *time.Time   `json:"endTime,omitempty"`
	Options   CrawlOptions `json:"options"`
	Metrics   JobMetrics   `json:"metrics"`
	Result    *CrawlResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	c.Result = j.Result.Clone()
	return &c
}

// Duration returns the elapsed time of the job. For unfinished jobs the
// elapsed time up to now is returned.
func (j *Job) Duration(now time.Time) time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return now.Sub(j.StartTime)
}

// JobSnapshot is the status view of a job. It omits pages so that
// status responses stay small.
type JobSnapshot struct {
	ID        string        `json:"jobId"`
	Status    JobStatus     `json:"status"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Duration  time.Duration `json:"-"`
	Options   CrawlOptions  `json:"options"`
	Metrics   JobMetrics    `json:"metrics"`
	Error     string        `json:"error,omitempty"`
}

// MarshalJSON encodes the snapshot with Duration in milliseconds.
func (s JobSnapshot) MarshalJSON() ([]byte, error) {
	type alias JobSnapshot
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration"`
	}{
		alias:    alias(s),
		Duration: s.Duration.Milliseconds(),
	})
}

// Snapshot builds the status view of the job at time now.
func (j *Job) Snapshot(now time.Time) *JobSnapshot {
	s := &JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		StartTime: j.StartTime,
		Duration:  j.Duration(now),
		Options:   j.Options,
		Metrics:   j.Metrics,
		Error:     j.Error,
	}
	if j.EndTime != nil {
		end := *j.EndTime
		s.EndTime = &end
	}
	return s
}
