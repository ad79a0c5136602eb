package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"laurels/internal/catalog"
	"laurels/pkg/logger"
)

// validateCmd checks a catalog without writing anything
var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Validate an achievement catalog",
	Long: `Parse and validate a YAML or JSON achievement catalog.

Prints every rejected definition with its reason and exits non-zero when
the document is malformed or any definition is rejected. The catalog path
defaults to catalog.path from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Catalog.Path
	if len(args) == 1 {
		path = args[0]
	}

	return validateCatalog(cmd.OutOrStdout(), path)
}

// validateCatalog loads the catalog at path, reports rejections to out and
// fails when the document is malformed or anything was rejected
func validateCatalog(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	c := catalog.New(logger.New("CATALOG"))
	count, err := c.LoadBytes(data)
	if err != nil {
		return fmt.Errorf("catalog %s is malformed: %w", path, err)
	}

	fmt.Fprintf(out, "%s: %d achievements indexed\n", path, count)
	rejected := c.Rejected()
	for _, r := range rejected {
		fmt.Fprintf(out, "  rejected %s: %s\n", r.ID, r.Reason)
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%d definitions rejected", len(rejected))
	}
	return nil
}
