package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/crawlscope/internal/api"
	"github.com/nao1215/crawlscope/internal/batch"
	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/job"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// serveFlagKeys binds serve flags to configuration keys.
var serveFlagKeys = flagKeys{
	"addr":        "server.addr",
	"store":       "jobs.store",
	"redis-addr":  "jobs.redis.addr",
	"retention":   "jobs.retention",
	"user-agent":  "crawl.user_agent",
	"proxy":       "crawl.proxy_address",
	"rate-limit":  "rate_limit.enabled",
	"archive":     "archive.enabled",
	"archive-dir": "archive.dir",
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawl API over HTTP",
		Long: `Serve starts the HTTP API:

  POST   /api/scrape            scrape one page
  POST   /api/scrape/batch      scrape many pages concurrently
  POST   /api/crawl             start an asynchronous crawl job
  GET    /api/crawl             list crawl jobs
  GET    /api/crawl/{id}        job status with live metrics
  GET    /api/crawl/{id}/result full result of a completed job
  DELETE /api/crawl/{id}        delete a job
  GET    /health                liveness and limiter load

Jobs are kept in memory by default. Use --store redis to share them
through Redis. On SIGINT or SIGTERM the server stops accepting requests
and waits up to server.shutdown_timeout for running crawls.

Examples:
  crawlscope serve --addr :9000
  crawlscope serve --store redis --redis-addr localhost:6379 --archive`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultServerAddr, "Listen address")
	cmd.Flags().String("store", config.StoreMemory, "Job store: memory or redis")
	cmd.Flags().String("redis-addr", config.DefaultRedisAddr, "Redis address for the redis job store")
	cmd.Flags().Duration("retention", config.DefaultJobRetention, "How long finished jobs stay queryable")
	addFetchFlags(cmd)
	cmd.Flags().Bool("archive", false, "Store every finished job in the archive")
	cmd.Flags().String("archive-dir", "", "Directory of the crawl archive")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the API until ctx is done, then drains running jobs.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	store, closeStore, err := newJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	managerOpts := []job.Option{job.WithStore(store), job.WithLogger(logger)}
	if cfg.Archive.Enabled {
		db, err := openArchive(cfg.Archive.Dir, true)
		if err != nil {
			return err
		}
		defer db.Close()
		managerOpts = append(managerOpts, job.WithArchiver(db))
		logger.Info("archiving finished jobs", "path", db.Path())
	}
	manager := job.NewManager(a.engine, managerOpts...)
	manager.StartCleanup(ctx, cfg.Jobs.CleanupInterval, cfg.Jobs.Retention)
	a.startSweep(ctx, cfg.Jobs.CleanupInterval)

	processor := batch.NewProcessor(a.scraper,
		batch.WithConcurrency(cfg.Crawl.Concurrency),
		batch.WithTimeout(cfg.Crawl.Timeout),
		batch.WithLogger(logger),
	)

	serverOpts := []api.Option{
		api.WithLimits(apiLimits(cfg)),
		api.WithCrawlDefaults(apiCrawlDefaults(cfg)),
		api.WithTimeouts(cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownTimeout),
		api.WithVersion(getVersion()),
		api.WithLogger(logger),
	}
	if a.limiter != nil {
		serverOpts = append(serverOpts, api.WithLimiterStats(a.limiter))
	}
	server := api.NewServer(manager, a.scraper, processor, serverOpts...)

	logger.Info("starting crawlscope", "version", getVersion(), "addr", cfg.Server.Addr, "store", cfg.Jobs.Store)
	serveErr := server.ListenAndServe(ctx, cfg.Server.Addr)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("running crawls cancelled at shutdown", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	logger.Info("crawlscope stopped")
	return nil
}

// newJobStore returns the job store selected by cfg and a func releasing it.
func newJobStore(ctx context.Context, cfg *config.Config) (job.Store, func(), error) {
	if cfg.Jobs.Store != config.StoreRedis {
		return job.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Jobs.Redis.Addr,
		Password: cfg.Jobs.Redis.Password,
		DB:       cfg.Jobs.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Jobs.Redis.Addr, err)
	}
	// Redis expiry backs up the cleanup loop.
	store := job.NewRedisStore(client, cfg.Jobs.Redis.Prefix, 2*cfg.Jobs.Retention)
	return store, func() { _ = client.Close() }, nil
}

// apiLimits converts the configured limits for the API.
func apiLimits(cfg *config.Config) api.Limits {
	return api.Limits{
		MaxDepth:       cfg.Limits.MaxDepth,
		MaxPages:       cfg.Limits.MaxPages,
		MaxConcurrency: cfg.Limits.MaxConcurrency,
		MaxTimeout:     cfg.Limits.MaxTimeout,
		MaxBatchURLs:   cfg.Limits.MaxBatchURLs,
	}
}

// apiCrawlDefaults converts the configured crawl defaults for the API.
func apiCrawlDefaults(cfg *config.Config) api.CrawlDefaults {
	return api.CrawlDefaults{
		Strategy:    model.Strategy(cfg.Crawl.Strategy),
		MaxDepth:    cfg.Crawl.MaxDepth,
		MaxPages:    cfg.Crawl.MaxPages,
		Concurrency: cfg.Crawl.Concurrency,
		Timeout:     cfg.Crawl.Timeout,
	}
}
