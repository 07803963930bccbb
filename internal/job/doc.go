// Package job runs crawls asynchronously and tracks their lifecycle.
//
// A Manager creates a Job in the pending state and starts the crawl as a
// background task. The task moves the job to running, then to completed or
// failed. Failures, including panics inside the crawl, are always captured
// into Job.Error. Callers observe progress only through GetJobStatus and
// GetJobResult, which return copies.
//
// Job records live in a Store. MemoryStore keeps them in process;
// RedisStore shares them through Redis.
package job
