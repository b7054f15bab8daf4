package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <chain-id>",
	Short: "List the saved revisions of a chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetChain(ctx, args[0]); err != nil {
		return err
	}
	revs, err := st.ListRevisions(ctx, args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	titleColor.Fprintf(w, "%s\n", args[0])
	if len(revs) == 0 {
		subtleColor.Fprintln(w, "no revisions")
		return nil
	}

	rows := make([][]string, 0, len(revs))
	for _, r := range revs {
		nodes, edges := 0, 0
		if r.Document != nil {
			nodes, edges = len(r.Document.Nodes), len(r.Document.Edges)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.Sequence, 10),
			r.Reason,
			strconv.Itoa(nodes),
			strconv.Itoa(edges),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	printTable(w, []string{"REV", "REASON", "NODES", "EDGES", "SAVED"}, rows, func(_, col int) *color.Color {
		if col == 1 {
			return subtleColor
		}
		return nil
	})
	fmt.Fprintf(w, "\nexport a revision with: chainedit export %s --revision N\n", args[0])
	return nil
}
