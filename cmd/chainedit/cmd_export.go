package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/diagram"
	"github.com/rendis/attackchain/internal/document"
	"github.com/rendis/attackchain/internal/editor"
)

var exportFlags struct {
	format   string
	jq       string
	clusters bool
	output   string
	revision int64
}

var exportCmd = &cobra.Command{
	Use:   "export <chain-id|file>",
	Short: "Export a chain as JSON, a diagram or an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.format, "format", "json", "Output format: json, mermaid, ascii, png, svg")
	f.StringVar(&exportFlags.jq, "jq", "", "jq query applied to the JSON document (json format only)")
	f.BoolVar(&exportFlags.clusters, "clusters", false, "Group diagram nodes by category")
	f.StringVarP(&exportFlags.output, "output", "o", "", "Output file (default: stdout)")
	f.Int64Var(&exportFlags.revision, "revision", 0, "Export a saved revision of a stored chain instead of its latest state")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFlags.jq != "" && exportFlags.format != "json" {
		return fmt.Errorf("--jq only applies to --format json")
	}
	ctx := cmd.Context()
	var ed *editor.Editor
	var err error
	if exportFlags.revision > 0 {
		ed, err = openRevision(ctx, args[0], exportFlags.revision)
	} else {
		ed, err = openSource(ctx, args[0])
	}
	if err != nil {
		return err
	}
	doc := ed.Document()

	var data []byte
	switch exportFlags.format {
	case "json":
		codec, err := document.NewCodec()
		if err != nil {
			return err
		}
		if exportFlags.jq != "" {
			result, err := codec.Query(ctx, doc, exportFlags.jq)
			if err != nil {
				return err
			}
			data, err = json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
		} else if data, err = codec.Encode(doc); err != nil {
			return err
		}
		data = append(data, '\n')
	case "mermaid", "ascii", "png", "svg":
		var opts []diagram.BuildOption
		if exportFlags.clusters {
			opts = append(opts, diagram.WithClusters())
		}
		model, err := diagram.Build(doc, opts...)
		if err != nil {
			return err
		}
		switch exportFlags.format {
		case "mermaid":
			data = []byte(diagram.RenderMermaid(model))
		case "ascii":
			data = []byte(diagram.RenderASCIIAuto(model, binDir()))
		case "png":
			data, err = diagram.RenderImage(ctx, model, diagram.FormatPNG)
		case "svg":
			data, err = diagram.RenderImage(ctx, model, diagram.FormatSVG)
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want json, mermaid, ascii, png or svg)", exportFlags.format)
	}

	if exportFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportFlags.output, err)
	}
	goodColor.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", exportFlags.output)
	return nil
}
