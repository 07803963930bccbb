package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/crawlscope/internal/metrics"
	"github.com/nao1215/crawlscope/internal/model"
)

// Runner executes one crawl. *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, opts model.CrawlOptions, tracker *metrics.Tracker) (*model.CrawlResult, error)
}

// Archiver stores finished jobs. *archive.DB satisfies it.
type Archiver interface {
	SaveCrawl(ctx context.Context, job *model.Job) (int64, error)
}

// Manager owns the lifecycle of asynchronous crawl jobs.
type Manager struct {
	runner   Runner
	store    Store
	archiver Archiver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() (string, error)

	// mu serializes read-modify-write cycles on stored jobs.
	mu       sync.Mutex
	trackers map[string]*metrics.Tracker
	closing  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore replaces the in-memory job store.
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithArchiver stores every job that reaches a terminal state.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) {
		m.archiver = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// NewManager returns a Manager that runs crawls with runner.
func NewManager(runner Runner, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		runner:   runner,
		store:    NewMemoryStore(),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    newUUID,
		trackers: make(map[string]*metrics.Tracker),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// newUUID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateJob stores a pending job for opts and starts the crawl in the
// background. It returns without waiting for the crawl. opts are not
// validated here.
func (m *Manager) CreateJob(ctx context.Context, opts model.CrawlOptions) (string, error) {
	id, err := m.newID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	job := &model.Job{
		ID:        id,
		Status:    model.JobPending,
		StartTime: m.now(),
		Options:   opts,
	}
	tracker := metrics.NewTracker()

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return "", ErrShutdown
	}
	if err := m.store.Save(ctx, job); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.trackers[id] = tracker
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", id, "start_url", opts.StartURL)
	go m.execute(id, opts, tracker)
	return id, nil
}

// execute is the background task of one job.
func (m *Manager) execute(id string, opts model.CrawlOptions, tracker *metrics.Tracker) {
	defer m.wg.Done()
	ctx := m.ctx
	// Store writes must survive cancellation of the crawl.
	storeCtx := context.WithoutCancel(ctx)

	if err := m.transition(storeCtx, id, func(j *model.Job) error {
		return setStatus(j, model.JobRunning)
	}); err != nil {
		m.forget(id)
		if !errors.Is(err, ErrJobNotFound) {
			m.logger.Warn("job could not start", "job_id", id, "error", err)
		}
		return
	}
	m.logger.Info("job running", "job_id", id)

	result, runErr := m.run(ctx, opts, tracker)

	var final *model.Job
	err := m.transition(storeCtx, id, func(j *model.Job) error {
		end := m.now()
		j.EndTime = &end
		j.Metrics = tracker.Snapshot()
		if runErr != nil {
			j.Error = runErr.Error()
			if err := setStatus(j, model.JobFailed); err != nil {
				return err
			}
		} else {
			j.Result = result
			if err := setStatus(j, model.JobCompleted); err != nil {
				return err
			}
		}
		final = j.Clone()
		return nil
	})
	m.forget(id)
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) {
			m.logger.Warn("job could not be finalized", "job_id", id, "error", err)
		}
		return
	}

	if runErr != nil {
		m.logger.Warn("job failed", "job_id", id, "error", runErr)
	} else {
		m.logger.Info("job completed",
			"job_id", id,
			"pages", result.PagesScraped,
			"errors", len(result.Errors),
			"duration", result.Duration,
		)
	}
	m.archive(final)
}

// run calls the runner and converts a panic into an error.
func (m *Manager) run(ctx context.Context, opts model.CrawlOptions, tracker *metrics.Tracker) (result *model.CrawlResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrCrawlPanicked, r)
		}
	}()
	return m.runner.Run(ctx, opts, tracker)
}

func (m *Manager) archive(job *model.Job) {
	if m.archiver == nil {
		return
	}
	if _, err := m.archiver.SaveCrawl(context.Background(), job); err != nil {
		m.logger.Warn("failed to archive job", "job_id", job.ID, "error", err)
	}
}

// transition loads the job, applies fn and saves the result atomically with
// respect to other Manager writers.
func (m *Manager) transition(ctx context.Context, id string, fn func(*model.Job) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(job); err != nil {
		return err
	}
	return m.store.Save(ctx, job)
}

func setStatus(j *model.Job, next model.JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trackers, id)
}

// GetJobStatus returns the status view of a job. Metrics of a running job
// are live.
func (m *Manager) GetJobStatus(ctx context.Context, id string) (*model.JobSnapshot, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.Snapshot(m.now()), nil
}

// GetJobResult returns a full copy of the job. The result is only
// meaningful once the status is completed.
func (m *Manager) GetJobResult(ctx context.Context, id string) (*model.Job, error) {
	return m.load(ctx, id)
}

// CompletedJob returns the job when it has completed and ErrJobNotReady
// otherwise.
func (m *Manager) CompletedJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotReady, id, job.Status)
	}
	return job, nil
}

// ListJobs returns the status view of every job, oldest first.
func (m *Manager) ListJobs(ctx context.Context) ([]*model.JobSnapshot, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	snapshots := make([]*model.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		m.withLiveMetrics(j)
		snapshots = append(snapshots, j.Snapshot(now))
	}
	return snapshots, nil
}

func (m *Manager) load(ctx context.Context, id string) (*model.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.withLiveMetrics(job)
	return job, nil
}

func (m *Manager) withLiveMetrics(job *model.Job) {
	if job.Status.IsTerminal() {
		return
	}
	m.mu.Lock()
	tracker, ok := m.trackers[job.ID]
	m.mu.Unlock()
	if ok {
		job.Metrics = tracker.Snapshot()
	}
}

// DeleteJob removes a job and reports whether it existed. Deleting a
// running job does not stop its crawl; the outcome is discarded.
func (m *Manager) DeleteJob(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(ctx, id)
}

// CleanupOldJobs removes terminal jobs that ended more than maxAge ago and
// returns how many were removed. Pending and running jobs are kept.
func (m *Manager) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	now := m.now()
	removed := 0
	for _, j := range jobs {
		if !j.Status.IsTerminal() || j.EndTime == nil || now.Sub(*j.EndTime) <= maxAge {
			continue
		}
		ok, err := m.store.Delete(ctx, j.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// StartCleanup runs CleanupOldJobs every interval until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				n, err := m.CleanupOldJobs(ctx, maxAge)
				if err != nil {
					m.logger.Warn("job cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					m.logger.Info("old jobs removed", "count", n)
				}
			}
		}
	}()
}

// Wait blocks until every started crawl has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown rejects new jobs and waits for running crawls. When ctx ends
// first, running crawls are cancelled and marked failed before Shutdown
// returns ctx's error.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}
