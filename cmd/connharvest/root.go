package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/connharvest/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for connharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connharvest",
		Short: "Harvest LinkedIn connections and their contact emails",
		Long: `connharvest walks the connections list of a LinkedIn profile in a browser,
records every connection it finds, and looks up each contact's email.

The crawl state lives in CSV files (or a SQLite database) in the output
directory. Running the same crawl again resumes from that state.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write diagnostics to stderr as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewStatusCmd())
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

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger returns the redacting logger selected by --log-json, writing to
// the command's stderr.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json")
	}
	if asJSON {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
