package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/urlnorm"
	"github.com/spf13/cobra"
)

// robotsFlagKeys binds robots flags to configuration keys.
var robotsFlagKeys = flagKeys{
	"user-agent": "crawl.user_agent",
	"proxy":      "crawl.proxy_address",
}

// robotsInfo is the result of the robots command.
type robotsInfo struct {
	URL        string   `json:"url"`
	UserAgent  string   `json:"userAgent"`
	Allowed    bool     `json:"allowed"`
	CrawlDelay int64    `json:"crawlDelay,omitempty"`
	Sitemaps   []string `json:"sitemaps"`
}

// NewRobotsCmd creates the robots command.
func NewRobotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "robots <url>",
		Short: "Check robots.txt rules for a URL",
		Long: `Robots fetches the robots.txt of the URL's origin and reports whether the
user agent may fetch the URL, the requested crawl delay and the sitemaps
it lists. A missing or unreachable robots.txt allows everything.

Examples:
  crawlscope robots https://example.com/private/page
  crawlscope robots --user-agent Googlebot --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runRobotsCmd,
	}

	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User agent to check rules for")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

// runRobotsCmd executes the robots command.
func runRobotsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, robotsFlagKeys)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	target, err := urlnorm.Normalize(args[0])
	if err != nil {
		return err
	}
	if !urlnorm.IsHTTPURL(target) {
		return fmt.Errorf("%w: %q is not http(s)", urlnorm.ErrInvalidURL, args[0])
	}

	logger := newLogger(cmd, cfg)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ua := cfg.Crawl.UserAgent
	info := robotsInfo{
		URL:       target,
		UserAgent: ua,
		Allowed:   a.robots.IsAllowed(ctx, target, ua),
	}
	if delay, ok := a.robots.CrawlDelay(ctx, target, ua); ok {
		info.CrawlDelay = delay.Milliseconds()
	}
	info.Sitemaps, err = a.robots.Sitemaps(ctx, target)
	if err != nil {
		logger.Warn("robots.txt unavailable", "url", target, "error", err)
		info.Sitemaps = []string{}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, info, true)
	}
	verdict := "allowed"
	if !info.Allowed {
		verdict = "disallowed"
	}
	fmt.Fprintf(out, "URL:         %s\n", info.URL)
	fmt.Fprintf(out, "User-Agent:  %s\n", info.UserAgent)
	fmt.Fprintf(out, "Verdict:     %s\n", verdict)
	if info.CrawlDelay > 0 {
		fmt.Fprintf(out, "Crawl-delay: %dms\n", info.CrawlDelay)
	}
	for _, s := range info.Sitemaps {
		fmt.Fprintf(out, "Sitemap:     %s\n", s)
	}
	return nil
}
