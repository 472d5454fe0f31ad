package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/demoscribe/internal/demo"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <demo.lmp>",
	Short: "Decode one demo file and print its header facts",
	Long: `Inspect decodes a single demo file without replaying it, printing the
header, footer and inferred facts. Useful when a record came out flagged
and the question is what the binary actually says.

Example:
  demoscribe inspect va01-123.lmp`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read demo: %w", err)
	}

	d := demo.Parse(raw, "")

	fmt.Printf("version:      %d", d.Version)
	if d.EngineTag != "" {
		fmt.Printf(" (%s)", d.EngineTag)
	}
	fmt.Println()
	fmt.Printf("skill:        %d\n", d.Skill)
	if d.Episode > 0 {
		fmt.Printf("level:        E%dM%d\n", d.Episode, d.Level)
	} else {
		fmt.Printf("level:        MAP%02d\n", d.Level)
	}
	fmt.Printf("players:      %d\n", d.NumPlayers)
	fmt.Printf("solo-net:     %v\n", d.SoloNet)
	fmt.Printf("nomonsters:   %v\n", d.NoMonsters)
	fmt.Printf("respawn:      %v\n", d.Respawn)
	fmt.Printf("fast:         %v\n", d.Fast)
	fmt.Printf("longtics:     %v\n", d.Longtics)
	if d.TAS {
		certainty := "possible"
		if d.TASCertain {
			certainty = "certain"
		}
		fmt.Printf("tas:          true (%s)\n", certainty)
	}
	if d.SourcePort != "" {
		fmt.Printf("source port:  %s\n", d.SourcePort)
	}
	if d.Complevel != "" {
		fmt.Printf("complevel:    %s\n", d.Complevel)
	}
	if d.IWAD != "" {
		fmt.Printf("iwad:         %s\n", d.IWAD)
	}
	if len(d.Resources) > 0 {
		fmt.Printf("resources:    %s\n", strings.Join(d.Resources, ", "))
	}
	for _, note := range d.Notes {
		fmt.Printf("note:         %s\n", note)
	}

	return nil
}
