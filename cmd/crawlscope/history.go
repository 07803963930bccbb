package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/crawlscope/internal/archive"
	"github.com/nao1215/crawlscope/internal/config"
	"github.com/nao1215/crawlscope/internal/urlnorm"
	"github.com/spf13/cobra"
)

// historyFlagKeys binds history flags to configuration keys.
var historyFlagKeys = flagKeys{
	"archive-dir": "archive.dir",
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse crawls stored in the archive",
		Long: `History lists, shows and deletes crawls stored by "crawl --archive" and by
"serve" with archiving enabled.

Examples:
  # List the 20 most recent crawls
  crawlscope history list -l 20

  # List crawls of one start URL
  crawlscope history list --url https://example.com/

  # Show an archived crawl as Markdown
  crawlscope history show <job-id> --markdown

  # Delete an archived crawl
  crawlscope history delete <job-id>`,
	}
	cmd.PersistentFlags().String("archive-dir", "", "Directory of the crawl archive")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived crawls, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryListCmd,
	}
	cmd.Flags().String("url", "", "Only list crawls of this start URL")
	cmd.Flags().IntP("limit", "l", 0, "Maximum number of crawls to list (0 = all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print the report of an archived crawl",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete an archived crawl",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
}

// openHistory loads the configuration of cmd and opens the existing archive.
func openHistory(cmd *cobra.Command) (*config.Config, *archive.DB, error) {
	cfg, err := loadConfig(cmd, historyFlagKeys)
	if err != nil {
		return nil, nil, err
	}
	db, err := openArchive(cfg.Archive.Dir, false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// runHistoryListCmd executes the history list command.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	_, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	startURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	if startURL != "" {
		if startURL, err = urlnorm.Normalize(startURL); err != nil {
			return err
		}
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	crawls, err := db.ListCrawls(cmd.Context(), archive.ListOptions{StartURL: startURL, Limit: limit})
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), crawls)
	return nil
}

// printHistory prints archived crawls as an aligned table.
func printHistory(w io.Writer, crawls []archive.Summary) {
	if len(crawls) == 0 {
		fmt.Fprintln(w, "No archived crawls found")
		return
	}
	fmt.Fprintf(w, "Archived crawls (%d):\n\n", len(crawls))
	fmt.Fprintf(w, "  %-36s  %-20s  %-9s  %6s  %6s  %s\n", "Job ID", "Started", "Status", "Pages", "Errors", "Start URL")
	for _, c := range crawls {
		fmt.Fprintf(w, "  %-36s  %-20s  %-9s  %6d  %6d  %s\n",
			c.JobID,
			c.StartTime.Local().Format("2006-01-02 15:04:05"),
			c.Status,
			c.PagesScraped,
			c.Errors,
			c.StartURL,
		)
	}
}

// runHistoryShowCmd executes the history show command.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	cfg, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	reportOpts, err := getReportOptions(cmd, cfg.Log.Verbose)
	if err != nil {
		return err
	}

	j, err := db.GetCrawl(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("no archived crawl with job id %s", args[0])
		}
		return err
	}
	return writeReport(cmd, j, reportOpts)
}

// runHistoryDeleteCmd executes the history delete command.
func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	_, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := db.DeleteCrawl(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no archived crawl with job id %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted archived crawl %s\n", args[0])
	return nil
}
