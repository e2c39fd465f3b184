package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a YAML snapshot into the vault database",
	Long: `Import a canonical YAML snapshot, replacing the vault database contents.
The snapshot is validated before anything is written; a snapshot carrying a
UUID that is both live and tombstoned is rejected.`,
	RunE: runImport,
}

var importFile string

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importFile, "file", "f", "vault.yaml", "Snapshot file to read")
}

func runImport(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath(cmd, "")
	if err != nil {
		return exitErr(1, err)
	}

	vault, err := snapshot.Import(importFile)
	if err != nil {
		return exitErr(1, err)
	}

	s, err := openStore(path, true)
	if err != nil {
		return exitErr(1, err)
	}
	defer s.DB().Close()

	if err := s.Save(vault); err != nil {
		return exitErr(1, fmt.Errorf("failed to save vault: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", importFile, path)
	return nil
}
