package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dukerupert/catalogops/internal/model"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export the database to a new snapshot",
	Long: `Start an export into the backup bucket, wait for it to finish, record
the run and apply retention. Same flow as the scheduled backup, recorded
with trigger "manual".`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Backups.Run(ctx, model.TriggerManual)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%s)\n", res.Destination, humanize.Bytes(res.SizeBytes))
	return nil
}

var (
	restoreWait    bool
	restoreTimeout time.Duration
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Import the newest snapshot",
	Long: `Find the newest snapshot in the backup bucket and start an import of it.
By default the command returns once the import is accepted; --wait polls
until it finishes.`,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreWait, "wait", false, "wait for the import to finish")
	restoreCmd.Flags().DurationVar(&restoreTimeout, "timeout", 0, "how long --wait polls (default CATALOGD_POLL_TIMEOUT)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Restorer.Run(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Restore started from %s\nOperation: %s\n", res.Source, res.Operation)

	if !restoreWait {
		return nil
	}
	timeout := restoreTimeout
	if timeout <= 0 {
		timeout = cfg.PollTimeout
	}
	if _, err := a.Tracker.Await(ctx, res.Operation, cfg.PollInterval, timeout); err != nil {
		return fmt.Errorf("restore did not finish: %w", err)
	}
	fmt.Fprintln(out, "Restore finished.")
	return nil
}
