package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/document"
	"github.com/rendis/attackchain/internal/editor"
)

var buildFlags struct {
	preset string
	name   string
	layout string
	save   bool
	output string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a chain from a catalog preset",
	Long: "Build lays a preset's templates out on the grid, chains them with sequence\n" +
		"edges and prints the chain document. --save stores it, -o writes it to a file.",
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.preset, "preset", "", "Catalog preset id (required)")
	f.StringVar(&buildFlags.name, "name", "", "Chain name (default: preset name)")
	f.StringVar(&buildFlags.layout, "layout", string(editor.LayoutGrid), "Layout: grid or layered")
	f.BoolVar(&buildFlags.save, "save", false, "Save the chain to the database")
	f.StringVarP(&buildFlags.output, "output", "o", "", "Write the chain document to this file")

	_ = buildCmd.MarkFlagRequired("preset")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	mode := editor.LayoutMode(buildFlags.layout)
	if mode != editor.LayoutGrid && mode != editor.LayoutLayered {
		return fmt.Errorf("unknown layout %q", buildFlags.layout)
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	preset, ok := cat.Preset(buildFlags.preset)
	if !ok {
		return fmt.Errorf("preset %q not found", buildFlags.preset)
	}

	name := buildFlags.name
	if name == "" {
		name = preset.Name
	}
	ed, err := editor.New(append(editorOptions(), editor.WithName(name))...)
	if err != nil {
		return err
	}
	if _, err := ed.LoadPreset(cat, preset.ID); err != nil {
		return err
	}
	if mode != editor.LayoutGrid {
		ed.Arrange(mode)
	}

	codec, err := document.NewCodec()
	if err != nil {
		return err
	}
	data, err := codec.Encode(ed.Document())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if buildFlags.save {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := ed.Save(cmd.Context(), st); err != nil {
			return err
		}
		goodColor.Fprintf(out, "saved chain %s\n", ed.ChainID())
	}
	if buildFlags.output != "" {
		if err := os.WriteFile(buildFlags.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", buildFlags.output, err)
		}
		goodColor.Fprintf(out, "wrote %s\n", buildFlags.output)
	}
	if !buildFlags.save && buildFlags.output == "" {
		fmt.Fprintln(out, string(data))
		return nil
	}

	printSummary(cmd, ed)
	return nil
}
