package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidServerAddr is returned when the listen address is empty.
	ErrInvalidServerAddr = errors.New("invalid server address: must not be empty")

	// ErrInvalidTimeout is returned when a fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxTextLength is returned when the max text length is negative.
	ErrInvalidMaxTextLength = errors.New("invalid max text length: must be non-negative")

	// ErrInvalidStrategy is returned for a crawl strategy other than domain, site or all.
	ErrInvalidStrategy = errors.New("invalid strategy: must be domain, site or all")

	// ErrInvalidLimits is returned when a request limit is not positive.
	ErrInvalidLimits = errors.New("invalid limits: every limit must be positive")

	// ErrInvalidCrawlDefaults is returned when a crawl default is not positive.
	ErrInvalidCrawlDefaults = errors.New("invalid crawl defaults: depth, pages and concurrency must be positive")

	// ErrDefaultExceedsLimit is returned when a crawl default is above its limit.
	ErrDefaultExceedsLimit = errors.New("invalid crawl defaults: a default exceeds its limit")

	// ErrInvalidRateLimit is returned for inconsistent rate limiter settings.
	ErrInvalidRateLimit = errors.New("invalid rate limit: check min_time, max_concurrent and reservoir")

	// ErrInvalidJobStore is returned for a job store other than memory or redis.
	ErrInvalidJobStore = errors.New("invalid job store: must be memory or redis")

	// ErrMissingRedisAddr is returned when the redis store has no address.
	ErrMissingRedisAddr = errors.New("redis job store requires jobs.redis.addr")

	// ErrInvalidRetention is returned when job retention or cleanup interval is not positive.
	ErrInvalidRetention = errors.New("invalid job retention: retention and cleanup interval must be positive")

	// ErrMissingArchiveDir is returned when the archive is enabled without a directory.
	ErrMissingArchiveDir = errors.New("archive enabled but archive.dir is empty")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when an explicitly named configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
