package main

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/crawlscope/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/sites.yaml
var templates embed.FS

// configHeader opens every generated configuration file.
const configHeader = `# crawlscope configuration
#
# Precedence: command-line flags > CRAWLSCOPE_* environment variables >
# this file > built-in defaults. Environment variables use the key path
# with "." replaced by "_", e.g. CRAWLSCOPE_CRAWL_MAX_DEPTH=5.
# Durations are written like "10s", "1m30s" or "1h".

`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a crawlscope configuration file",
		Long: `Init writes a configuration file holding every setting at its default
value, followed by a commented example of per-site settings.

Examples:
  # Create .crawlscope.yaml in the current directory
  crawlscope init

  # Create the config file at a specific path
  crawlscope init -o ~/.config/crawlscope/config.yaml

  # Overwrite an existing file
  crawlscope init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

// renderConfigTemplate returns the contents of a new configuration file.
func renderConfigTemplate() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	if err := config.NewConfig().WriteYAML(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode default configuration: %w", err)
	}
	sites, err := templates.ReadFile("templates/sites.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config template: %w", err)
	}
	buf.Write(sites)
	return buf.Bytes(), nil
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := renderConfigTemplate()
	if err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Crawl defaults and the limits API clients cannot exceed")
	fmt.Fprintln(out, "  - The job store, retention and archive")
	fmt.Fprintln(out, "  - Per-site cookies, headers and URL patterns")
	return nil
}
