// Package cli provides the catalogctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/catalogops/internal/app"
	"github.com/dukerupert/catalogops/internal/config"
	"github.com/dukerupert/catalogops/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	cfg    config.Config
	logger *slog.Logger

	// newApp is swapped in tests.
	newApp = app.New
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Operate catalog backups, restores and migrations",
	Long: `catalogctl runs the same backup, restore and migration flows as catalogd,
once, from the command line. Configuration comes from the CATALOGD_*
environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logging.ParseLevel(level)}))
		return nil
	},
}

// openApp connects to the configured backends. The caller closes the App.
func openApp(ctx context.Context) (*app.App, error) {
	return newApp(ctx, cfg, logger)
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}
