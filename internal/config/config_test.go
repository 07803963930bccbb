package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default server address is :8080", func(t *testing.T) {
		t.Parallel()
		if cfg.Server.Addr != ":8080" {
			t.Errorf("expected Addr to be ':8080', got '%s'", cfg.Server.Addr)
		}
	})

	t.Run("default fetch timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Crawl.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Crawl.Timeout)
		}
	})

	t.Run("crawl defaults are domain, 3, 100, 5", func(t *testing.T) {
		t.Parallel()
		if cfg.Crawl.Strategy != "domain" || cfg.Crawl.MaxDepth != 3 || cfg.Crawl.MaxPages != 100 || cfg.Crawl.Concurrency != 5 {
			t.Errorf("unexpected crawl defaults: %+v", cfg.Crawl)
		}
	})

	t.Run("limits are 10, 1000, 20, 60s, 100", func(t *testing.T) {
		t.Parallel()
		want := LimitsConfig{MaxDepth: 10, MaxPages: 1000, MaxConcurrency: 20, MaxTimeout: 60 * time.Second, MaxBatchURLs: 100}
		if cfg.Limits != want {
			t.Errorf("expected limits %+v, got %+v", want, cfg.Limits)
		}
	})

	t.Run("robots are respected by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.Crawl.RespectRobots {
			t.Error("expected RespectRobots to be true")
		}
	})

	t.Run("rate limiter is per origin with reservoir 600", func(t *testing.T) {
		t.Parallel()
		if !cfg.RateLimit.Enabled || !cfg.RateLimit.PerOrigin {
			t.Error("expected per-origin rate limiting enabled")
		}
		if cfg.RateLimit.MinTime != 100*time.Millisecond || cfg.RateLimit.MaxConcurrent != 10 || cfg.RateLimit.Reservoir != 600 {
			t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
		}
	})

	t.Run("memory job store with 1h retention", func(t *testing.T) {
		t.Parallel()
		if cfg.Jobs.Store != StoreMemory || cfg.Jobs.Retention != time.Hour {
			t.Errorf("unexpected job defaults: %+v", cfg.Jobs)
		}
	})

	t.Run("archive is disabled", func(t *testing.T) {
		t.Parallel()
		if cfg.Archive.Enabled {
			t.Error("expected archive disabled")
		}
		if cfg.Archive.Dir != XDGDataDir() {
			t.Errorf("expected archive dir %q, got %q", XDGDataDir(), cfg.Archive.Dir)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "empty server address", modify: func(c *Config) { c.Server.Addr = "" }, want: ErrInvalidServerAddr},
		{name: "zero timeout", modify: func(c *Config) { c.Crawl.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative max timeout", modify: func(c *Config) { c.Limits.MaxTimeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "timeout above limit", modify: func(c *Config) { c.Crawl.Timeout = 2 * time.Minute }, want: ErrDefaultExceedsLimit},
		{name: "negative body size", modify: func(c *Config) { c.Crawl.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "negative text length", modify: func(c *Config) { c.Crawl.MaxTextLength = -1 }, want: ErrInvalidMaxTextLength},
		{name: "unknown strategy", modify: func(c *Config) { c.Crawl.Strategy = "everything" }, want: ErrInvalidStrategy},
		{name: "zero max pages limit", modify: func(c *Config) { c.Limits.MaxPages = 0 }, want: ErrInvalidLimits},
		{name: "zero default depth", modify: func(c *Config) { c.Crawl.MaxDepth = 0 }, want: ErrInvalidCrawlDefaults},
		{name: "default depth above limit", modify: func(c *Config) { c.Crawl.MaxDepth = 11 }, want: ErrDefaultExceedsLimit},
		{name: "zero max concurrent", modify: func(c *Config) { c.RateLimit.MaxConcurrent = 0 }, want: ErrInvalidRateLimit},
		{name: "reservoir without refresh", modify: func(c *Config) { c.RateLimit.ReservoirRefresh = 0 }, want: ErrInvalidRateLimit},
		{name: "unknown job store", modify: func(c *Config) { c.Jobs.Store = "etcd" }, want: ErrInvalidJobStore},
		{name: "redis without address", modify: func(c *Config) { c.Jobs.Store = StoreRedis; c.Jobs.Redis.Addr = "" }, want: ErrMissingRedisAddr},
		{name: "zero retention", modify: func(c *Config) { c.Jobs.Retention = 0 }, want: ErrInvalidRetention},
		{name: "archive without dir", modify: func(c *Config) { c.Archive.Enabled = true; c.Archive.Dir = "" }, want: ErrMissingArchiveDir},
		{name: "unknown log format", modify: func(c *Config) { c.Log.Format = "xml" }, want: ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("disabled rate limiter skips its checks", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.RateLimit.Enabled = false
		cfg.RateLimit.MaxConcurrent = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("redis with address is valid", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Jobs.Store = StoreRedis
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestGetSiteConfig tests merging of site settings over defaults.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{
			Defaults: SiteConfig{Cookie: "default_cookie=abc", IgnorePatterns: []string{"*.pdf"}},
			Sites:    map[string]SiteConfig{},
		}
		site := cfg.GetSiteConfig("unknown.example")
		if site.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", site.Cookie)
		}
		if len(site.IgnorePatterns) != 1 {
			t.Errorf("expected default ignore patterns, got %v", site.IgnorePatterns)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{
			Defaults: SiteConfig{Cookie: "default_cookie=abc", IgnorePatterns: []string{"*.pdf"}},
			Sites: map[string]SiteConfig{
				"example.com": {
					Cookie:         "session=xyz",
					IgnorePatterns: []string{"/admin/*"},
					FollowPatterns: []string{"/docs/*"},
				},
			},
		}
		site := cfg.GetSiteConfig("Example.COM")
		if site.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", site.Cookie)
		}
		if len(site.IgnorePatterns) != 1 || site.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", site.IgnorePatterns)
		}
		if len(site.FollowPatterns) != 1 || site.FollowPatterns[0] != "/docs/*" {
			t.Errorf("expected site follow patterns, got %v", site.FollowPatterns)
		}
	})

	t.Run("merges headers without mutating defaults", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "value1", "Authorization": "default"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"Authorization": "site-token"}},
			},
		}
		site := cfg.GetSiteConfig("example.com")
		if site.Headers["X-Default"] != "value1" {
			t.Error("expected default header to be kept")
		}
		if site.Headers["Authorization"] != "site-token" {
			t.Errorf("expected site token to override, got %q", site.Headers["Authorization"])
		}
		if cfg.Defaults.Headers["Authorization"] != "default" {
			t.Error("defaults must not be modified by a merge")
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{Defaults: SiteConfig{Cookie: "c=1"}}
		if site := cfg.GetSiteConfig("example.com"); site.Cookie != "c=1" {
			t.Errorf("expected default cookie, got %q", site.Cookie)
		}
	})
}

func TestSiteHeaders(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Defaults: SiteConfig{Headers: map[string]string{"X-Crawler": "yes"}},
		Sites: map[string]SiteConfig{
			"example.com": {Cookie: "session=xyz", Headers: map[string]string{"authorization": "Bearer t"}},
			"empty.com":   {},
		},
	}
	headers := cfg.SiteHeaders()

	if headers["*"].Get("X-Crawler") != "yes" {
		t.Error("expected default headers under *")
	}
	site := headers["example.com"]
	if site.Get("Cookie") != "session=xyz" {
		t.Errorf("expected cookie header, got %q", site.Get("Cookie"))
	}
	if site.Get("Authorization") != "Bearer t" {
		t.Errorf("expected canonicalized authorization header, got %v", site)
	}
	if _, ok := headers["empty.com"]; ok {
		t.Error("sites without headers should be omitted")
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.crawlscope.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML over defaults", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlscope.yaml")
		content := `server:
  addr: ":9090"
crawl:
  timeout: 15s
  strategy: site
jobs:
  store: redis
  redis:
    addr: "redis:6379"
defaults:
  cookie: "default=abc"
sites:
  Example.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/api/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Server.Addr != ":9090" {
			t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
		}
		if cfg.Crawl.Timeout != 15*time.Second {
			t.Errorf("expected timeout 15s, got %v", cfg.Crawl.Timeout)
		}
		if cfg.Crawl.Strategy != "site" {
			t.Errorf("expected strategy site, got %q", cfg.Crawl.Strategy)
		}
		if cfg.Crawl.MaxPages != DefaultMaxPages {
			t.Errorf("expected unset key to keep default, got %d", cfg.Crawl.MaxPages)
		}
		if cfg.Jobs.Redis.Prefix != DefaultRedisPrefix {
			t.Errorf("expected default redis prefix, got %q", cfg.Jobs.Redis.Prefix)
		}
		if cfg.ConfigFilePath != configPath {
			t.Errorf("expected ConfigFilePath %q, got %q", configPath, cfg.ConfigFilePath)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com (lowercased) in sites")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if len(site.IgnorePatterns) != 1 {
			t.Errorf("expected 1 ignore pattern, got %d", len(site.IgnorePatterns))
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected loaded config to be valid, got %v", err)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlscope.yaml")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlscope.yaml")
		if err := os.WriteFile(configPath, []byte("log:\n  verbose: true\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
		if !cfg.Log.Verbose {
			t.Error("expected verbose from file")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit path is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := Load("/nonexistent/crawlscope.yaml"); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("explicit path is loaded", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "c.yaml")
		if err := os.WriteFile(configPath, []byte("server:\n  addr: \":7000\"\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := Load(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Server.Addr != ":7000" {
			t.Errorf("expected :7000, got %q", cfg.Server.Addr)
		}
	})
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewConfig().WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}
	if !strings.Contains(buf.String(), "timeout: 10s") {
		t.Errorf("expected durations as strings, got:\n%s", buf.String())
	}

	configPath := filepath.Join(t.TempDir(), "init.yaml")
	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := LoadConfigFile(configPath)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if cfg.Crawl != NewConfig().Crawl {
		t.Errorf("round trip changed crawl config: %+v", cfg.Crawl)
	}
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGDataDir() == "" {
		t.Error("expected non-empty XDG data dir")
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected XDG config dir to end in %q, got %q", AppName, XDGConfigDir())
	}
}
