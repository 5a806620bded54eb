// Package cmd implements the command-line interface for sitewatch.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/sitewatch/cmd/baselines"
	"github.com/jonesrussell/sitewatch/cmd/httpd"
	"github.com/jonesrussell/sitewatch/cmd/run"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sitewatch",
	Short: "Detect and report changes across monitored sites",
	Long:  "sitewatch periodically enumerates and fingerprints a site's pages, evolving a per-site baseline and reporting what changed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command with a fresh context.
func Execute() error {
	_ = godotenv.Load(".env", ".env.local")
	return rootCmd.ExecuteContext(context.Background())
}

// Code extracts the process exit code from an error Execute returned,
// per spec.md §6's batch exit code contract. Non-run subcommands only
// ever fail with plain errors, which Code maps to ExitConfigError.
func Code(err error) int {
	return run.Code(err)
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitewatch version %s\n", version)
		},
	})

	rootCmd.AddCommand(run.Command())
	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(baselines.Command())
}
