package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/rendis/attackchain/pkg/schema"
)

// Output palette.
var (
	titleColor  = color.New(color.FgHiCyan, color.Bold)
	subtleColor = color.New(color.FgHiBlack)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed, color.Bold)
)

func severityColor(s schema.Severity) *color.Color {
	switch s {
	case schema.SeverityCritical:
		return badColor
	case schema.SeverityHigh:
		return color.New(color.FgRed)
	case schema.SeverityMedium:
		return warnColor
	default:
		return goodColor
	}
}

func verdictColor(v schema.Verdict) *color.Color {
	switch v {
	case schema.VerdictValid:
		return goodColor
	case schema.VerdictWarning:
		return warnColor
	default:
		return badColor
	}
}

// printTable prints an aligned table. Colors are applied per cell after
// padding so escape codes do not skew the widths.
func printTable(w io.Writer, headers []string, rows [][]string, cellColor func(row, col int) *color.Color) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := "  "
	sep := "  "
	for i, h := range headers {
		header += fmt.Sprintf("%-*s  ", widths[i], h)
		sep += strings.Repeat("─", widths[i]) + "  "
	}
	subtleColor.Fprintln(w, strings.TrimRight(header, " "))
	subtleColor.Fprintln(w, strings.TrimRight(sep, " "))

	for r, row := range rows {
		var b strings.Builder
		b.WriteString("  ")
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			padded := fmt.Sprintf("%-*s", widths[i], cell)
			if cellColor != nil {
				if c := cellColor(r, i); c != nil {
					padded = c.Sprint(padded)
				}
			}
			b.WriteString(padded)
			b.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}
