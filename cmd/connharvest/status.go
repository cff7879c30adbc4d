package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/connharvest/internal/config"
	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/report"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the stored crawl state",
		Long: `Status reads the connection and email tables and reports how far the crawl
got: connections found per page, lookups completed, pending and failed, and
the emails found so far. It never opens a browser.

Examples:
  # Text summary of the tables in the current directory
  connharvest status

  # Markdown report with a status chart, written to a file
  connharvest status --markdown -o report.md

  # JSON for other tools
  connharvest status --json --backend sqlite --output-dir ./harvest`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .connharvest in current or home directory)")
	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory holding the connection and email tables")
	cmd.Flags().String("backend", config.DefaultBackend,
		"Storage backend: csv or sqlite")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	rep, err := loadReport(cmd.Context(), b, time.Now())
	if err != nil {
		return err
	}

	return outputReport(cfg, rep, cmd.OutOrStdout())
}

// outputReport writes rep in the requested format to cfg.ReportFile, or to
// stdout when no file is set.
func outputReport(cfg *config.Config, rep *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list harvested emails; only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := w.Write(rep)
	return err
}
