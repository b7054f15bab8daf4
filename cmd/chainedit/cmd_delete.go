package main

import (
	"github.com/spf13/cobra"
)

var deleteFlags struct {
	vacuum bool
}

var deleteCmd = &cobra.Command{
	Use:   "delete <chain-id>...",
	Short: "Delete stored chains and their revisions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteFlags.vacuum, "vacuum", false, "Compact the database afterwards")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	for _, id := range args {
		if err := st.DeleteChain(ctx, id); err != nil {
			return err
		}
		goodColor.Fprintf(out, "deleted chain %s\n", id)
	}
	if deleteFlags.vacuum {
		if err := st.Vacuum(ctx); err != nil {
			return err
		}
		subtleColor.Fprintln(out, "database compacted")
	}
	return nil
}
