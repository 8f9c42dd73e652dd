// Package cli provides the reviewctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"review-hub-backend/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "Validate and import hotel review CSV files",
	Long: `reviewctl checks review exports against the review schema and imports
them into review-hub.

Files are validated locally first. Only accepted rows are sent to the server,
in chunks, and the command follows the import job until it finishes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()
		if verbose {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			config.Logger = logger
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = config.Logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
}

// exitCode is returned through Execute so main can pick the status.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := err.(exitCode); ok {
		return int(code)
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", theme.errorStyle().Render("Error:"), err)
	return 1
}
