package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/editor"
	"github.com/rendis/attackchain/pkg/schema"
)

var inspectFlags struct {
	strict bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <chain-id|file>",
	Short: "Report stats, verdict and validation issues of a chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.strict, "strict", false, "Exit with an error when the chain has validation errors")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ed, err := openSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	printSummary(cmd, ed)

	report := ed.Inspect()
	if len(report.Errors)+len(report.Warnings) > 0 {
		fmt.Fprintln(out)
		titleColor.Fprintln(out, "Issues")
		for _, issue := range report.Issues() {
			c := warnColor
			if issue.Severity == schema.IssueError {
				c = badColor
			}
			c.Fprintf(out, "  %-8s %s: %s\n", issue.Severity, issue.Path, issue.Message)
		}
	}

	guards := ed.Guards(cmd.Context())
	if len(guards) > 0 {
		fmt.Fprintln(out)
		titleColor.Fprintln(out, "Guards")
		rows := make([][]string, 0, len(guards))
		for _, g := range guards {
			rows = append(rows, []string{g.EdgeID, g.Expression, strconv.FormatBool(g.Passed), g.Error})
		}
		printTable(out, []string{"EDGE", "GUARD", "PASSED", "ERROR"}, rows, func(r, c int) *color.Color {
			if c != 2 {
				return nil
			}
			if guards[r].Passed {
				return goodColor
			}
			return badColor
		})
	}

	if inspectFlags.strict {
		return report.ToError()
	}
	return nil
}

// printSummary prints the chain header and its stats block.
func printSummary(cmd *cobra.Command, ed *editor.Editor) {
	out := cmd.OutOrStdout()
	st := ed.Stats()
	verdict := ed.ValidationStatus()

	name := ed.Name()
	if name == "" {
		name = "(unnamed)"
	}
	titleColor.Fprintf(out, "%s ", name)
	subtleColor.Fprintf(out, "%s\n", ed.ChainID())
	fmt.Fprintf(out, "  nodes          %d\n", st.NodeCount)
	fmt.Fprintf(out, "  edges          %d\n", st.EdgeCount)
	fmt.Fprintf(out, "  duration       %s\n", st.Duration)
	fmt.Fprintf(out, "  critical path  %dm\n", st.CriticalPathMinutes)
	fmt.Fprintf(out, "  risk           %s\n", severityColor(st.RiskLevel).Sprint(st.RiskLevel))
	fmt.Fprintf(out, "  verdict        %s\n", verdictColor(verdict).Sprint(verdict))
}
