package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/domain"
	"github.com/lherron/vaultq/internal/id"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Display the vault's groups and entries as a tree",
	RunE:  runTree,
}

var treeShowUUIDs bool

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().BoolVar(&treeShowUUIDs, "uuids", false, "Show full UUIDs instead of short forms")
}

func runTree(cmd *cobra.Command, args []string) error {
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

	printGroup(cmd, vault.Root(), "")
	return nil
}

func printGroup(cmd *cobra.Command, g *domain.Group, indent string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s/ [%s]\n", indent, g.Name(), displayUUID(g))
	for _, e := range g.Entries() {
		title := e.Title()
		if title == "" {
			title = "(untitled)"
		}
		shown := e.UUID().String()
		if !treeShowUUIDs {
			shown = id.Short(e.UUID())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s [%s]\n", indent, title, shown)
	}
	for _, child := range g.Children() {
		printGroup(cmd, child, indent+"  ")
	}
}

func displayUUID(g *domain.Group) string {
	if treeShowUUIDs {
		return g.UUID().String()
	}
	return id.Short(g.UUID())
}
