package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// AppName is the application name used for XDG directory paths.
const AppName = "crawlscope"

// Default configuration values.
const (
	// DefaultServerAddr is the listen address of `crawlscope serve`.
	DefaultServerAddr = ":8080"

	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the server and jobs.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultTimeout applies to each individual fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits the bytes read from one response.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler in requests and robots.txt groups.
	DefaultUserAgent = "crawlscope/1.0 (+https://github.com/nao1215/crawlscope)"

	// DefaultRobotsTTL is how long a fetched robots.txt is reused.
	DefaultRobotsTTL = time.Hour

	// DefaultMaxTextLength bounds extracted page text, in runes.
	DefaultMaxTextLength = 10000

	// DefaultStrategy is the crawl strategy when a request names none.
	DefaultStrategy = "domain"

	// DefaultMaxDepth is the crawl depth when a request names none.
	DefaultMaxDepth = 3

	// DefaultMaxPages is the page cap when a request names none.
	DefaultMaxPages = 100

	// DefaultConcurrency is the crawl and batch concurrency when a request names none.
	DefaultConcurrency = 5

	// DefaultJobRetention is how long finished jobs stay queryable.
	DefaultJobRetention = time.Hour

	// DefaultCleanupInterval is how often expired jobs are removed.
	DefaultCleanupInterval = 10 * time.Minute

	// DefaultRedisAddr is the Redis address of the redis job store.
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisPrefix namespaces job keys in Redis.
	DefaultRedisPrefix = "crawlscope:"
)

// Job store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration of crawlscope. It is built once in the
// command layer and passed down as plain values; no package reads it
// globally.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Limits    LimitsConfig    `yaml:"limits"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`

	// Defaults applies to every site unless a Sites entry overrides it.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host name to its site-specific configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// CrawlConfig configures fetching and the crawl defaults.
type CrawlConfig struct {
	// Timeout is the default per-fetch timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxBodySize is the largest response body read, in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	UserAgent string `yaml:"user_agent"`

	// RespectRobots makes crawls consult robots.txt.
	RespectRobots bool `yaml:"respect_robots"`

	RobotsTTL time.Duration `yaml:"robots_ttl"`

	// MaxTextLength bounds extracted page text, in runes.
	MaxTextLength int `yaml:"max_text_length"`

	// ProxyAddress routes all fetches through a SOCKS5 proxy (host:port).
	ProxyAddress string `yaml:"proxy_address,omitempty"`

	// ResolveHosts enables the DNS-based private-address check.
	ResolveHosts bool `yaml:"resolve_hosts"`

	Strategy    string `yaml:"strategy"`
	MaxDepth    int    `yaml:"max_depth"`
	MaxPages    int    `yaml:"max_pages"`
	Concurrency int    `yaml:"concurrency"`
}

// LimitsConfig bounds client-supplied request values.
type LimitsConfig struct {
	MaxDepth       int           `yaml:"max_depth"`
	MaxPages       int           `yaml:"max_pages"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	MaxTimeout     time.Duration `yaml:"max_timeout"`
	MaxBatchURLs   int           `yaml:"max_batch_urls"`
}

// RateLimitConfig configures the fetch rate limiter.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinTime is the minimum spacing between request starts.
	MinTime time.Duration `yaml:"min_time"`

	MaxConcurrent int `yaml:"max_concurrent"`

	// Reservoir is the number of requests allowed per refresh interval.
	// Zero disables the reservoir.
	Reservoir        int           `yaml:"reservoir"`
	ReservoirRefresh time.Duration `yaml:"reservoir_refresh"`

	// PerOrigin gives every origin its own limiter instead of one global one.
	PerOrigin bool `yaml:"per_origin"`
}

// JobsConfig configures the job manager.
type JobsConfig struct {
	// Store is "memory" or "redis".
	Store           string        `yaml:"store"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the redis job store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ArchiveConfig configures the SQLite crawl archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              DefaultServerAddr,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Crawl: CrawlConfig{
			Timeout:       DefaultTimeout,
			MaxBodySize:   DefaultMaxBodySize,
			UserAgent:     DefaultUserAgent,
			RespectRobots: true,
			RobotsTTL:     DefaultRobotsTTL,
			MaxTextLength: DefaultMaxTextLength,
			Strategy:      DefaultStrategy,
			MaxDepth:      DefaultMaxDepth,
			MaxPages:      DefaultMaxPages,
			Concurrency:   DefaultConcurrency,
		},
		Limits: LimitsConfig{
			MaxDepth:       10,
			MaxPages:       1000,
			MaxConcurrency: 20,
			MaxTimeout:     60 * time.Second,
			MaxBatchURLs:   100,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MinTime:          100 * time.Millisecond,
			MaxConcurrent:    10,
			Reservoir:        600,
			ReservoirRefresh: time.Minute,
			PerOrigin:        true,
		},
		Jobs: JobsConfig{
			Store:           StoreMemory,
			Retention:       DefaultJobRetention,
			CleanupInterval: DefaultCleanupInterval,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Prefix: DefaultRedisPrefix,
			},
		},
		Archive: ArchiveConfig{
			Dir: XDGDataDir(),
		},
		Log: LogConfig{
			Format: LogFormatText,
		},
		Sites: make(map[string]SiteConfig),
	}
}

// XDGDataDir returns the XDG data directory for crawlscope, where the
// crawl archive lives by default.
// On Linux: ~/.local/share/crawlscope
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for crawlscope.
// On Linux: ~/.config/crawlscope
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrInvalidServerAddr
	}
	if c.Crawl.Timeout <= 0 || c.Limits.MaxTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Crawl.Timeout > c.Limits.MaxTimeout {
		return ErrDefaultExceedsLimit
	}
	if c.Crawl.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Crawl.MaxTextLength < 0 {
		return ErrInvalidMaxTextLength
	}
	switch c.Crawl.Strategy {
	case "domain", "site", "all":
	default:
		return ErrInvalidStrategy
	}
	if c.Limits.MaxDepth < 1 || c.Limits.MaxPages < 1 || c.Limits.MaxConcurrency < 1 || c.Limits.MaxBatchURLs < 1 {
		return ErrInvalidLimits
	}
	if c.Crawl.MaxDepth < 1 || c.Crawl.MaxPages < 1 || c.Crawl.Concurrency < 1 {
		return ErrInvalidCrawlDefaults
	}
	if c.Crawl.MaxDepth > c.Limits.MaxDepth || c.Crawl.MaxPages > c.Limits.MaxPages ||
		c.Crawl.Concurrency > c.Limits.MaxConcurrency {
		return ErrDefaultExceedsLimit
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MinTime < 0 || c.RateLimit.MaxConcurrent < 1 || c.RateLimit.Reservoir < 0 {
			return ErrInvalidRateLimit
		}
		if c.RateLimit.Reservoir > 0 && c.RateLimit.ReservoirRefresh <= 0 {
			return ErrInvalidRateLimit
		}
	}
	switch c.Jobs.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Jobs.Redis.Addr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidJobStore
	}
	if c.Jobs.Retention <= 0 || c.Jobs.CleanupInterval <= 0 {
		return ErrInvalidRetention
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return ErrMissingArchiveDir
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
