package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/demoscribe/internal/match"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/pipeline"
)

var reconcileJSON string

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <records-dir> <counterparts.json>",
	Short: "Match local records against published counterparts",
	Long: `Reconcile pairs the records from a processing run with a JSON export
of the externally published entries, then reports:
- Matched pairs, with per-field differences
- Records that tied between several counterparts (no pick is made)
- Records with no counterpart, and counterparts with no record

Example:
  demoscribe reconcile ./records counterparts.json
  demoscribe reconcile ./records counterparts.json --json result.json`,
	Args: cobra.ExactArgs(2),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileJSON, "json", "", "write the full result to this JSON path")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	records, err := pipeline.ReadRecords(args[0])
	if err != nil {
		return err
	}
	counterparts, err := match.LoadCounterparts(args[1])
	if err != nil {
		return err
	}

	result := match.NewResolver(logger).Resolve(records, counterparts)

	for _, pair := range result.Pairs {
		if len(pair.Diffs) == 0 {
			continue
		}
		fmt.Fprintf(os.Stderr, "~ %s differs from %s:\n",
			describeRecord(pair.Record), pair.Counterpart.ID)
		for _, d := range pair.Diffs {
			fmt.Fprintf(os.Stderr, "    %s: %v -> %v\n", d.Field, d.Counterpart, d.Local)
		}
	}
	for _, amb := range result.Ambiguous {
		fmt.Fprintf(os.Stderr, "? %s: %s\n", describeRecord(amb.Record), amb)
	}
	for _, record := range result.Unmatched {
		fmt.Fprintf(os.Stderr, "✗ no counterpart for %s\n", describeRecord(record))
	}
	for _, orphan := range result.Orphans {
		fmt.Fprintf(os.Stderr, "✗ no record for counterpart %s\n", orphan.ID)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Pairs:      %d\n", len(result.Pairs))
	fmt.Fprintf(os.Stderr, "  Ambiguous:  %d\n", len(result.Ambiguous))
	fmt.Fprintf(os.Stderr, "  Unmatched:  %d\n", len(result.Unmatched))
	fmt.Fprintf(os.Stderr, "  Orphans:    %d\n", len(result.Orphans))
	fmt.Fprintf(os.Stderr, "\n")

	if reconcileJSON != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if err := os.WriteFile(reconcileJSON, data, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	return nil
}

func describeRecord(record *model.Record) string {
	players := record.Players()
	name := "?"
	if len(players) > 0 {
		name = players[0]
	}
	return fmt.Sprintf("%s %s %s (%s)", name,
		record.StringField("wad"), record.StringField("level"), record.StringField("time"))
}
