package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitescan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitescan",
		Short: "Crawl websites and report security exposures",
		Long: `sitescan crawls the websites you own or are authorized to test and reports
security exposures: files and directories that should not be public
(.git, .env, backups), secrets leaked in page content, TLS problems,
missing security headers, directory listings and verbose error pages.

The sites to crawl and their scope are read from a YAML configuration
file. Use 'sitescan init' to create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// -v logs progress, -vv logs every request.
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewImportBookmarksCmd())
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

// getVerbosity returns the number of -v flags given to cmd or its parents.
func getVerbosity(cmd *cobra.Command) int {
	verbosity, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		verbosity, err = cmd.Root().PersistentFlags().GetCount("verbose")
		if err != nil {
			return 0
		}
	}
	return verbosity
}
