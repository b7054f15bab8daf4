package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/catalog"
	"github.com/rendis/attackchain/pkg/schema"
)

var catalogFlags struct {
	category string
	filter   string
	search   string
	presets  bool
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List technique templates or preset chains",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	f := catalogCmd.Flags()
	f.StringVar(&catalogFlags.category, "category", "", "Restrict to one category")
	f.StringVar(&catalogFlags.filter, "filter", "", `Expr predicate, e.g. 'severity == "critical" && max_time <= 60'`)
	f.StringVar(&catalogFlags.search, "search", "", "Case-insensitive text search")
	f.BoolVar(&catalogFlags.presets, "presets", false, "List preset chains instead of templates")
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if catalogFlags.presets {
		rows := make([][]string, 0)
		for _, p := range cat.Presets() {
			rows = append(rows, []string{p.ID, p.Name, p.Difficulty, strings.Join(p.Templates, " → ")})
		}
		printTable(out, []string{"ID", "NAME", "DIFFICULTY", "TEMPLATES"}, rows, nil)
		return nil
	}

	templates := cat.Search(catalogFlags.search)
	if catalogFlags.category != "" {
		templates = slices.DeleteFunc(templates, func(t catalog.Template) bool { return t.Category != catalogFlags.category })
	}
	if catalogFlags.filter != "" {
		matched, err := cat.Filter(cmd.Context(), catalogFlags.filter)
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		templates = slices.DeleteFunc(templates, func(t catalog.Template) bool {
			return !slices.ContainsFunc(matched, func(m catalog.Template) bool { return m.ID == t.ID })
		})
	}

	if len(templates) == 0 {
		subtleColor.Fprintln(out, "no templates match")
		return nil
	}

	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []string{t.ID, t.Name, t.Category, t.Severity, t.EstimatedTime})
	}
	printTable(out, []string{"ID", "NAME", "CATEGORY", "SEVERITY", "TIME"}, rows, func(r, c int) *color.Color {
		if c == 3 {
			return severityColor(schema.Severity(templates[r].Severity))
		}
		return nil
	})
	return nil
}
