package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/connharvest/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new connharvest configuration file",
		Long: `Initialize creates a new .connharvest configuration file in the current directory.

The generated file documents every setting with its default value:
- Storage backend and table names
- Browser session directory, headless mode and navigation rate
- Crawl limits and error retries
- Humanized delay ranges
- CSS selectors for the result pages

Examples:
  # Create .connharvest in current directory
  connharvest init

  # Create config file at a specific path
  connharvest init -o myconfig.yaml

  # Force overwrite existing file
  connharvest init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
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

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, config.Template, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to tune settings such as:")
	fmt.Fprintln(out, "  - Output directory and storage backend")
	fmt.Fprintln(out, "  - Page limit and error retries")
	fmt.Fprintln(out, "  - Delay ranges and selectors")

	return nil
}
