package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nao1215/crawlscope/internal/batch"
	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/model"
	"github.com/spf13/cobra"
)

// errTooManyURLs is returned when a batch exceeds limits.max_batch_urls.
var errTooManyURLs = errors.New("too many URLs")

// scrapeFlagKeys binds scrape flags to configuration keys.
var scrapeFlagKeys = flagKeys{
	"concurrency": "crawl.concurrency",
	"timeout":     "crawl.timeout",
	"user-agent":  "crawl.user_agent",
	"proxy":       "crawl.proxy_address",
	"rate-limit":  "rate_limit.enabled",
}

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url> [url...]",
		Short: "Scrape one or more pages and print them as JSON",
		Long: `Scrape fetches each URL once, without following links, and prints the
extracted title, text, links and meta tags as JSON.

A single URL prints one page. Several URLs are scraped concurrently and
print a batch result with per-URL errors and stats. With --stream each
page is printed as one JSON line as soon as it finishes.

Examples:
  crawlscope scrape https://example.com
  crawlscope scrape -n 10 https://example.com/a https://example.com/b
  crawlscope scrape --stream https://example.com/a https://example.com/b`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScrapeCmd,
	}

	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Number of concurrent scrapes")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each fetch")
	addFetchFlags(cmd)
	cmd.Flags().Bool("stream", false, "Print each page as a JSON line when it finishes")
	cmd.Flags().StringP("output", "o", "", "Write the output to a file instead of stdout")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd, scrapeFlagKeys)
	if err != nil {
		return err
	}
	if len(args) > cfg.Limits.MaxBatchURLs {
		return fmt.Errorf("%w: %d given, at most %d allowed", errTooManyURLs, len(args), cfg.Limits.MaxBatchURLs)
	}
	stream, err := cmd.Flags().GetBool("stream")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, closeOut, err := openOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if len(args) == 1 && !stream {
		page, err := a.scraper.Scrape(ctx, args[0], cfg.Crawl.Timeout)
		if err != nil {
			return err
		}
		return encodeJSON(out, page, true)
	}

	processor := batch.NewProcessor(a.scraper,
		batch.WithConcurrency(cfg.Crawl.Concurrency),
		batch.WithTimeout(cfg.Crawl.Timeout),
		batch.WithLogger(logger),
	)
	if !stream {
		return encodeJSON(out, processor.Process(ctx, args, cfg.Crawl.Concurrency), true)
	}
	return streamBatch(ctx, processor, args, cfg.Crawl.Concurrency, out)
}

// streamLine is one line of --stream output.
type streamLine struct {
	URL   string          `json:"url"`
	Page  *model.PageData `json:"page,omitempty"`
	Error string          `json:"error,omitempty"`
}

// streamBatch prints one JSON line per finished URL.
func streamBatch(ctx context.Context, processor *batch.Processor, urls []string, concurrency int, out io.Writer) error {
	var (
		mu       sync.Mutex
		writeErr error
	)
	processor.ProcessWithCallback(ctx, urls, concurrency, func(o batch.Outcome) {
		line := streamLine{URL: o.URL, Page: o.Page}
		if o.Err != nil {
			line.Error = o.Err.Error()
		}
		mu.Lock()
		defer mu.Unlock()
		if writeErr == nil {
			writeErr = encodeJSON(out, line, false)
		}
	})
	return writeErr
}

// encodeJSON writes v to w as JSON followed by a newline.
func encodeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
