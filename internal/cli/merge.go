package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/domain"
	"github.com/lherron/vaultq/internal/merge"
	"github.com/lherron/vaultq/internal/snapshot"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a source vault into a target vault",
	Long: `Merge a source vault database into a target vault database.

Both vaults must share common ancestry: objects are matched by UUID, never
by path or name. Conflicts resolve under each target group's merge mode
unless --mode forces one. Use --dry-run to see what would change as a
unified diff without writing.`,
	RunE: runMerge,
}

var (
	mergeSourceDB   string
	mergeTargetDB   string
	mergeMode       string
	mergeDryRun     bool
	mergeReportPath string
)

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&mergeSourceDB, "source", "", "Source vault database path")
	mergeCmd.Flags().StringVar(&mergeTargetDB, "dest", "", "Target vault database path (overrides --db)")
	mergeCmd.Flags().StringVar(&mergeMode, "mode", "", "Force a merge mode (keep_newer, keep_existing, keep_both, synchronize)")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Show what would change without writing")
	mergeCmd.Flags().StringVar(&mergeReportPath, "report", "", "Write JSON change report to path")
}

type mergeReport struct {
	SourceDB string   `json:"source_db"`
	TargetDB string   `json:"target_db"`
	Mode     string   `json:"mode,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty"`
	Applied  bool     `json:"applied"`
	Changes  []change `json:"changes,omitempty"`
}

type change struct {
	Kind    string `json:"kind"`
	UUID    string `json:"uuid,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func runMerge(cmd *cobra.Command, args []string) error {
	if mergeSourceDB == "" {
		return exitErr(2, fmt.Errorf("source database path not specified (use --source)"))
	}
	targetPath, err := resolveDBPath(cmd, mergeTargetDB)
	if err != nil {
		return exitErr(1, err)
	}

	sourceStore, err := openStore(mergeSourceDB, false)
	if err != nil {
		return exitErr(1, fmt.Errorf("source: %w", err))
	}
	defer sourceStore.DB().Close()

	targetStore, err := openStore(targetPath, false)
	if err != nil {
		return exitErr(1, fmt.Errorf("target: %w", err))
	}
	defer targetStore.DB().Close()

	sourceVault, err := sourceStore.Load()
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to load source vault: %w", err))
	}
	targetVault, err := targetStore.Load()
	if err != nil {
		return exitErr(1, fmt.Errorf("failed to load target vault: %w", err))
	}

	var before []byte
	if mergeDryRun {
		if before, err = snapshot.Marshal(snapshot.Capture(targetVault)); err != nil {
			return exitErr(1, err)
		}
	}

	merger, err := merge.New(sourceVault, targetVault)
	if err != nil {
		return exitErr(1, err)
	}
	if mergeMode != "" {
		mode, err := domain.ParseMergeMode(mergeMode)
		if err != nil {
			return exitErr(2, err)
		}
		if mode == domain.ModeInherit {
			return exitErr(2, fmt.Errorf("cannot force merge mode inherit"))
		}
		merger.SetForcedMode(mode)
	}

	applied := merger.Merge()
	changes := merger.Changes()

	if mergeDryRun {
		after, err := snapshot.Marshal(snapshot.Capture(targetVault))
		if err != nil {
			return exitErr(1, err)
		}
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(before)),
			B:        difflib.SplitLines(string(after)),
			FromFile: "target",
			ToFile:   "merged",
			Context:  3,
		}
		diffText, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			return exitErr(1, fmt.Errorf("failed to compute diff: %w", err))
		}
		if diffText == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
		} else {
			fmt.Fprint(cmd.OutOrStdout(), diffText)
		}
	} else if applied {
		if err := targetStore.Save(targetVault); err != nil {
			return exitErr(1, fmt.Errorf("failed to save target vault: %w", err))
		}
		if err := targetStore.Events().LogMergeChanges(changes); err != nil {
			return exitErr(1, fmt.Errorf("failed to log merge events: %w", err))
		}
	}

	if mergeReportPath != "" {
		if err := writeMergeReport(mergeSourceDB, targetPath, applied, changes); err != nil {
			return exitErr(1, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", mergeReportPath)
	}

	printMergeSummary(cmd, applied, changes)
	return nil
}

func writeMergeReport(sourcePath, targetPath string, applied bool, changes merge.ChangeList) error {
	report := mergeReport{
		SourceDB: sourcePath,
		TargetDB: targetPath,
		Mode:     mergeMode,
		DryRun:   mergeDryRun,
		Applied:  applied,
	}
	for _, c := range changes {
		rc := change{Kind: string(c.Kind), Name: c.Name, Message: c.Message}
		if c.UUID != uuid.Nil {
			rc.UUID = c.UUID.String()
		}
		report.Changes = append(report.Changes, rc)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(mergeReportPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func printMergeSummary(cmd *cobra.Command, applied bool, changes merge.ChangeList) {
	out := cmd.OutOrStdout()
	if !applied {
		fmt.Fprintln(out, "Already up to date.")
		return
	}
	for _, msg := range changes.Messages() {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	fmt.Fprintf(out, "Applied %d change(s).\n", len(changes))
}
