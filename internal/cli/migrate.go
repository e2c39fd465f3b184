package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the vault database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath(cmd, "")
	if err != nil {
		return exitErr(1, err)
	}
	database, err := db.Open(path)
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to open database: %w", err))
	}
	defer database.Close()

	_, pending, err := database.MigrationStatus()
	if err != nil {
		return exitErr(1, err)
	}
	if err := database.Migrate(); err != nil {
		return exitErr(1, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s\n", len(pending), path)
	return nil
}
