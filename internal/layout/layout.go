// Package layout computes automatic node placements.
package layout

import (
	"sort"

	"github.com/rendis/attackchain/internal/graph"
	"github.com/rendis/attackchain/pkg/schema"
)

// Grid parameters in logical units.
const (
	Columns   = 3
	OriginX   = 200.0
	OriginY   = 100.0
	ColumnGap = 250.0
	RowGap    = 150.0
)

// Grid places nodes row by row in three columns following their order.
// Edges are ignored. The result maps node id to its new position.
func Grid(nodes []schema.Node) map[string]schema.Point {
	ordered := byOrder(nodes)
	out := make(map[string]schema.Point, len(ordered))
	for i, n := range ordered {
		out[n.ID] = cell(i%Columns, i/Columns)
	}
	return out
}

// Layered places each topological level in its own column, rows following
// node order within the level. Cyclic chains fall back to Grid.
func Layered(nodes []schema.Node, edges []schema.Edge) map[string]schema.Point {
	ordered := byOrder(nodes)
	dag, err := graph.Analyze(ordered, edges)
	if err != nil {
		return Grid(nodes)
	}
	out := make(map[string]schema.Point, len(ordered))
	for col, level := range dag.Levels {
		for row, id := range level {
			out[id] = cell(col, row)
		}
	}
	return out
}

func cell(col, row int) schema.Point {
	return schema.Point{
		X: OriginX + float64(col)*ColumnGap,
		Y: OriginY + float64(row)*RowGap,
	}
}

func byOrder(nodes []schema.Node) []schema.Node {
	out := append([]schema.Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
