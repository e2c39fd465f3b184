package cli

import (
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <a.yaml> <b.yaml>",
	Short: "Show a unified diff between two vault snapshots",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := os.ReadFile(args[0])
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to read %s: %w", args[0], err))
	}
	b, err := os.ReadFile(args[1])
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to read %s: %w", args[1], err))
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: args[0],
		ToFile:   args[1],
		Context:  3,
	}
	diffText, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to compute diff: %w", err))
	}
	if diffText == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No differences.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diffText)
	return exitErr(1, fmt.Errorf("snapshots differ"))
}
