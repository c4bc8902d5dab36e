package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:     "snapshots",
	Aliases: []string{"ls"},
	Short:   "List stored snapshots",
	Args:    cobra.NoArgs,
	RunE:    runSnapshots,
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snapshots, err := a.Backups.Snapshots(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "No snapshots.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCREATED\tSIZE\tURI")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.Key,
			humanize.Time(s.CreatedAt),
			humanize.Bytes(s.SizeBytes),
			a.Objects.Location().URI(s.Prefix),
		)
	}
	return w.Flush()
}

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete snapshots older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "retention-days", 0, "override CATALOGD_RETENTION_DAYS")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupDays > 0 {
		cfg.RetentionDays = cleanupDays
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Backups.Cleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d snapshots, deleted %d, failed %d (retention %d days)\n",
		report.Scanned, report.Deleted, report.Failed, cfg.RetentionDays)
	return nil
}
