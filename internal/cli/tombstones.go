package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tombstonesCmd = &cobra.Command{
	Use:   "tombstones",
	Short: "List the vault's deleted-object tombstones",
	RunE:  runTombstones,
}

func init() {
	rootCmd.AddCommand(tombstonesCmd)
}

func runTombstones(cmd *cobra.Command, args []string) error {
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

	objects := vault.DeletedObjects()
	if len(objects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tombstones.")
		return nil
	}
	for _, obj := range objects {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", obj.UUID, obj.DeletionTime.UTC().Format(time.RFC3339))
	}
	return nil
}
