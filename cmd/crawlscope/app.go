package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/crawlscope/internal/archive"
	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/engine"
	"github.com/nao1215/crawlscope/internal/fetch"
	"github.com/nao1215/crawlscope/internal/log"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/parse"
	"github.com/nao1215/crawlscope/internal/ratelimit"
	"github.com/nao1215/crawlscope/internal/robots"
	"github.com/nao1215/crawlscope/internal/rules"
	"github.com/nao1215/crawlscope/internal/scrape"
	"github.com/spf13/cobra"
)

// flagKeys maps command flag names to configuration keys.
type flagKeys map[string]string

// globalFlagKeys are the persistent flags every command overlays.
var globalFlagKeys = flagKeys{
	"verbose":    "log.verbose",
	"log-format": "log.format",
}

// loadConfig builds the effective configuration of cmd: defaults, then the
// config file, then CRAWLSCOPE_* variables, then the flags in keys that the
// user changed.
func loadConfig(cmd *cobra.Command, keys flagKeys) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	v := config.NewViper()
	for _, set := range []flagKeys{globalFlagKeys, keys} {
		for name, key := range set {
			flag := cmd.Flag(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	if err := cfg.Overlay(v); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger of cmd from cfg.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return log.NewLogger(cmd.ErrOrStderr(), log.Options{
		Verbose: cfg.Log.Verbose,
		Format:  cfg.Log.Format,
	})
}

// app holds the components shared by the crawl, scrape and serve commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *http.Client
	limiter *ratelimit.Group
	robots  *robots.Checker
	scraper *scrape.Scraper
	engine  *engine.Engine
}

// newApp wires the fetch, scrape and crawl stack described by cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := fetch.NewHTTPClient(fetch.ClientOptions{
		Timeout:      cfg.Limits.MaxTimeout,
		ProxyAddress: cfg.Crawl.ProxyAddress,
	})
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(client,
		fetch.WithUserAgent(cfg.Crawl.UserAgent),
		fetch.WithMaxBodySize(cfg.Crawl.MaxBodySize),
		fetch.WithSiteHeaders(cfg.SiteHeaders()),
	)

	a := &app{
		cfg:    cfg,
		logger: logger,
		client: client,
	}

	scrapeOpts := []scrape.Option{scrape.WithMaxTextLength(cfg.Crawl.MaxTextLength)}
	if cfg.RateLimit.Enabled {
		a.limiter = ratelimit.NewGroup(ratelimit.Options{
			MinTime:                  cfg.RateLimit.MinTime,
			MaxConcurrent:            cfg.RateLimit.MaxConcurrent,
			Reservoir:                cfg.RateLimit.Reservoir,
			ReservoirRefreshInterval: cfg.RateLimit.ReservoirRefresh,
		}, cfg.RateLimit.PerOrigin)
		scrapeOpts = append(scrapeOpts, scrape.WithThrottle(a.limiter))
	}
	a.scraper = scrape.New(fetcher, parse.NewHTMLParser(), scrapeOpts...)

	a.robots = robots.NewChecker(client,
		robots.WithTTL(cfg.Crawl.RobotsTTL),
		robots.WithUserAgent(cfg.Crawl.UserAgent),
		robots.WithLogger(logger),
	)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSiteRules(func(host string) []rules.Option {
			site := cfg.GetSiteConfig(host)
			return []rules.Option{
				rules.WithIgnorePatterns(site.IgnorePatterns),
				rules.WithFollowPatterns(site.FollowPatterns),
			}
		}),
	}
	if cfg.Crawl.RespectRobots {
		engineOpts = append(engineOpts, engine.WithRobots(a.robots, cfg.Crawl.UserAgent))
	}
	if cfg.Crawl.ResolveHosts {
		engineOpts = append(engineOpts, engine.WithRuleOptions(rules.WithResolver(net.DefaultResolver, cfg.Crawl.Timeout)))
	}
	a.engine = engine.New(a.scraper, engineOpts...)
	return a, nil
}

// close releases the rate limiter.
func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
}

// sweep evicts idle rate limiters and expired robots.txt entries.
func (a *app) sweep() {
	limiters := 0
	if a.limiter != nil {
		limiters = a.limiter.EvictIdle()
	}
	purged := a.robots.Purge()
	if limiters > 0 || purged > 0 {
		a.logger.Debug("idle crawl state released", "limiters", limiters, "robots", purged)
	}
}

// startSweep runs sweep every interval until ctx is done.
func (a *app) startSweep(ctx context.Context, interval time.Duration) {
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
			case <-ticker.C:
				a.sweep()
			}
		}
	}()
}

// crawlOptions returns the configured crawl defaults for startURL.
func (a *app) crawlOptions(startURL string) model.CrawlOptions {
	return model.CrawlOptions{
		StartURL:    startURL,
		Strategy:    model.Strategy(a.cfg.Crawl.Strategy),
		MaxDepth:    a.cfg.Crawl.MaxDepth,
		MaxPages:    a.cfg.Crawl.MaxPages,
		Concurrency: a.cfg.Crawl.Concurrency,
		Timeout:     a.cfg.Crawl.Timeout,
	}
}

// openArchive opens the crawl archive in dir. With create false the
// database must already exist.
func openArchive(dir string, create bool) (*archive.DB, error) {
	opts := archive.DefaultOptions()
	opts.CreateIfNotExists = create
	db, err := archive.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return db, nil
}
