package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the vault as a canonical YAML snapshot",
	RunE:  runExport,
}

var exportFile string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "vault.yaml", "Snapshot file to write")
}

func runExport(cmd *cobra.Command, args []string) error {
	path, err := resolveDBPath(cmd, "")
	if err != nil {
		return exitErr(1, err)
	}
	s, err := openStore(path, false)
	if err != nil {
		return exitErr(1, err)
	}
	defer s.DB().Close()

	vault, err := s.Load()
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to load vault: %w", err))
	}
	if err := snapshot.Export(vault, exportFile); err != nil {
		return exitErr(1, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", path, exportFile)
	return nil
}
