package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CRAWLSCOPE_SERVER_ADDR.
const EnvPrefix = "CRAWLSCOPE"

// binding ties a dotted configuration key to the field it sets.
type binding struct {
	key   string
	apply func(v *viper.Viper, key string) error
}

func str(p *string) func(*viper.Viper, string) error {
	return func(v *viper.Viper, key string) error {
		*p = v.GetString(key)
		return nil
	}
}

func integer(p *int) func(*viper.Viper, string) error {
	return func(v *viper.Viper, key string) error {
		if raw, ok := v.Get(key).(string); ok {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return invalidValue(key, raw, err)
			}
			*p = n
			return nil
		}
		*p = v.GetInt(key)
		return nil
	}
}

func integer64(p *int64) func(*viper.Viper, string) error {
	return func(v *viper.Viper, key string) error {
		if raw, ok := v.Get(key).(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return invalidValue(key, raw, err)
			}
			*p = n
			return nil
		}
		*p = v.GetInt64(key)
		return nil
	}
}

func boolean(p *bool) func(*viper.Viper, string) error {
	return func(v *viper.Viper, key string) error {
		if raw, ok := v.Get(key).(string); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return invalidValue(key, raw, err)
			}
			*p = b
			return nil
		}
		*p = v.GetBool(key)
		return nil
	}
}

func duration(p *time.Duration) func(*viper.Viper, string) error {
	return func(v *viper.Viper, key string) error {
		if raw, ok := v.Get(key).(string); ok {
			d, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				return invalidValue(key, raw, err)
			}
			*p = d
			return nil
		}
		*p = v.GetDuration(key)
		return nil
	}
}

func invalidValue(key, raw string, err error) error {
	return fmt.Errorf("invalid value %q for %s: %w", raw, key, err)
}

// bindings lists every key the overlay understands.
func (c *Config) bindings() []binding {
	return []binding{
		{"server.addr", str(&c.Server.Addr)},
		{"server.read_header_timeout", duration(&c.Server.ReadHeaderTimeout)},
		{"server.shutdown_timeout", duration(&c.Server.ShutdownTimeout)},

		{"crawl.timeout", duration(&c.Crawl.Timeout)},
		{"crawl.max_body_size", integer64(&c.Crawl.MaxBodySize)},
		{"crawl.user_agent", str(&c.Crawl.UserAgent)},
		{"crawl.respect_robots", boolean(&c.Crawl.RespectRobots)},
		{"crawl.robots_ttl", duration(&c.Crawl.RobotsTTL)},
		{"crawl.max_text_length", integer(&c.Crawl.MaxTextLength)},
		{"crawl.proxy_address", str(&c.Crawl.ProxyAddress)},
		{"crawl.resolve_hosts", boolean(&c.Crawl.ResolveHosts)},
		{"crawl.strategy", str(&c.Crawl.Strategy)},
		{"crawl.max_depth", integer(&c.Crawl.MaxDepth)},
		{"crawl.max_pages", integer(&c.Crawl.MaxPages)},
		{"crawl.concurrency", integer(&c.Crawl.Concurrency)},

		{"limits.max_depth", integer(&c.Limits.MaxDepth)},
		{"limits.max_pages", integer(&c.Limits.MaxPages)},
		{"limits.max_concurrency", integer(&c.Limits.MaxConcurrency)},
		{"limits.max_timeout", duration(&c.Limits.MaxTimeout)},
		{"limits.max_batch_urls", integer(&c.Limits.MaxBatchURLs)},

		{"rate_limit.enabled", boolean(&c.RateLimit.Enabled)},
		{"rate_limit.min_time", duration(&c.RateLimit.MinTime)},
		{"rate_limit.max_concurrent", integer(&c.RateLimit.MaxConcurrent)},
		{"rate_limit.reservoir", integer(&c.RateLimit.Reservoir)},
		{"rate_limit.reservoir_refresh", duration(&c.RateLimit.ReservoirRefresh)},
		{"rate_limit.per_origin", boolean(&c.RateLimit.PerOrigin)},

		{"jobs.store", str(&c.Jobs.Store)},
		{"jobs.retention", duration(&c.Jobs.Retention)},
		{"jobs.cleanup_interval", duration(&c.Jobs.CleanupInterval)},
		{"jobs.redis.addr", str(&c.Jobs.Redis.Addr)},
		{"jobs.redis.password", str(&c.Jobs.Redis.Password)},
		{"jobs.redis.db", integer(&c.Jobs.Redis.DB)},
		{"jobs.redis.prefix", str(&c.Jobs.Redis.Prefix)},

		{"archive.enabled", boolean(&c.Archive.Enabled)},
		{"archive.dir", str(&c.Archive.Dir)},

		{"log.verbose", boolean(&c.Log.Verbose)},
		{"log.format", str(&c.Log.Format)},
	}
}

// Keys returns every dotted key the overlay understands.
func Keys() []string {
	b := NewConfig().bindings()
	keys := make([]string, len(b))
	for i := range b {
		keys[i] = b[i].key
	}
	return keys
}

// NewViper returns a viper instance reading CRAWLSCOPE_* environment
// variables, with "." in keys mapped to "_".
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay applies every key set in v on top of c. With v from NewViper
// and cobra flags bound through BindPFlag, changed flags win over the
// environment, which wins over the file.
func (c *Config) Overlay(v *viper.Viper) error {
	if v == nil {
		return nil
	}
	for _, b := range c.bindings() {
		if !v.IsSet(b.key) {
			continue
		}
		if err := b.apply(v, b.key); err != nil {
			return err
		}
	}
	return nil
}
