package job

import "errors"

var (
	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotReady is returned when a result is requested before the job
	// has completed.
	ErrJobNotReady = errors.New("job not completed")
	// ErrCrawlPanicked is recorded when a crawl panics.
	ErrCrawlPanicked = errors.New("crawl panicked")
	// ErrInvalidTransition is returned when a status change would move a job
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrShutdown is returned by CreateJob once Shutdown has started.
	ErrShutdown = errors.New("job manager is shutting down")
)
