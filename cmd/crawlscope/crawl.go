package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/job"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/spf13/cobra"
)

// errCrawlFailed is returned when a crawl ends in the failed state.
var errCrawlFailed = errors.New("crawl failed")

// crawlFlagKeys binds crawl flags to configuration keys.
var crawlFlagKeys = flagKeys{
	"strategy":       "crawl.strategy",
	"depth":          "crawl.max_depth",
	"max-pages":      "crawl.max_pages",
	"concurrency":    "crawl.concurrency",
	"timeout":        "crawl.timeout",
	"user-agent":     "crawl.user_agent",
	"respect-robots": "crawl.respect_robots",
	"proxy":          "crawl.proxy_address",
	"resolve-hosts":  "crawl.resolve_hosts",
	"rate-limit":     "rate_limit.enabled",
	"archive":        "archive.enabled",
	"archive-dir":    "archive.dir",
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website breadth-first and print a report",
		Long: `Crawl starts at the given URL and follows links breadth-first until the
depth or page limit is reached or no links remain.

The strategy decides which hosts are followed:
  domain  only the start URL's host (default)
  site    the start URL's registrable domain, subdomains included
  all     any host

Per-site cookies, headers and ignore/follow patterns come from the
config file.

Examples:
  # Crawl three levels deep
  crawlscope crawl https://example.com -d 3

  # Follow subdomains and write a Markdown report
  crawlscope crawl https://example.com -s site --markdown -o report.md

  # Store the result in the archive for later use with "history"
  crawlscope crawl https://example.com --archive`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("strategy", "s", config.DefaultStrategy, "Crawl strategy: domain, site or all")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum crawl depth (exclusive)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages to scrape")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Number of concurrent fetches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each fetch")
	addFetchFlags(cmd)
	cmd.Flags().Bool("respect-robots", true, "Honor robots.txt rules and crawl delays")
	cmd.Flags().Bool("resolve-hosts", false, "Skip hosts that resolve to private addresses")
	cmd.Flags().Bool("archive", false, "Store the finished crawl in the archive")
	cmd.Flags().String("archive-dir", "", "Directory of the crawl archive")
	addReportFlags(cmd)

	return cmd
}

// addFetchFlags registers the flags shared by commands that fetch pages.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header sent with every request")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("rate-limit", true, "Throttle requests per origin")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, crawlFlagKeys)
	if err != nil {
		return err
	}
	reportOpts, err := getReportOptions(cmd, cfg.Log.Verbose)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	managerOpts := []job.Option{job.WithLogger(logger)}
	if cfg.Archive.Enabled {
		db, err := openArchive(cfg.Archive.Dir, true)
		if err != nil {
			return err
		}
		defer db.Close()
		managerOpts = append(managerOpts, job.WithArchiver(db))
	}
	manager := job.NewManager(a.engine, managerOpts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finished, err := runCrawl(ctx, manager, a.crawlOptions(args[0]))
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		logger.Info("crawl interrupted", "job_id", finished.ID)
	}

	if err := writeReport(cmd, finished, reportOpts); err != nil {
		return err
	}
	if finished.Status == model.JobFailed {
		return fmt.Errorf("%w: %s", errCrawlFailed, finished.Error)
	}
	return nil
}

// runCrawl runs one crawl job on manager and returns the finished job.
// When ctx ends first the crawl is cancelled and the job finishes failed.
func runCrawl(ctx context.Context, manager *job.Manager, opts model.CrawlOptions) (*model.Job, error) {
	id, err := manager.CreateJob(ctx, opts)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		expired, cancel := context.WithCancel(context.Background())
		cancel()
		_ = manager.Shutdown(expired)
	}

	return manager.GetJobResult(context.WithoutCancel(ctx), id)
}
