// Package cli implements the vaultq command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vaultq",
	Short: "Manage and merge hierarchical credential vaults",
	Long: `vaultq manages hierarchical credential vaults on a SQLite backend and
reconciles divergent copies with a UUID-anchored three-way merge: creations,
relocations, per-group conflict policies, history folding, and tombstone
reconciliation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to vault database file (overrides VAULTQ_DB_PATH)")
}
