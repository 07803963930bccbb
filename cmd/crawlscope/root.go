package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for crawlscope.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlscope",
		Short: "Breadth-first web crawler with an HTTP job API",
		Long: `crawlscope crawls websites breadth-first under depth, page and host limits.

Run "crawlscope serve" to expose the crawl engine over HTTP with
asynchronous jobs, or use "crawl" and "scrape" for one-off runs.

Settings come from defaults, then the config file (.crawlscope.yaml),
then CRAWLSCOPE_* environment variables, then command-line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewRobotsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
