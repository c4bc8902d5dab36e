package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the legacy catalog document to the current schema",
	Long: `Convert the legacy app/state document into config, categories and items.
A catalog already at the current schema is left alone.

Examples:
  catalogctl migrate --dry-run
  catalogctl migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report what would be migrated without writing")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Migrator.Run(ctx, migrateDryRun)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.AlreadyMigrated {
		fmt.Fprintf(out, "Already migrated (schema %d).\n", res.Schema)
		return nil
	}
	if res.DryRun {
		fmt.Fprintln(out, "Dry run, nothing written.")
	}
	fmt.Fprintf(out, "Config migrated: %t\n", res.ConfigMigrated)
	fmt.Fprintf(out, "Categories: %d/%d\n", res.CategoriesMigrated, res.CategoriesProcessed)
	fmt.Fprintf(out, "Items: %d/%d (%d failed)\n", res.ItemsMigrated, res.ItemsProcessed, res.ItemsFailed)
	return nil
}
