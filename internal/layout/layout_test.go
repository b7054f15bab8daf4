package layout

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/rendis/attackchain/pkg/schema"
)

func nodesWithOrders(orders ...int) []schema.Node {
	out := make([]schema.Node, len(orders))
	for i, o := range orders {
		out[i] = schema.Node{ID: string(rune('a' + i)), Order: o}
	}
	return out
}

func TestGrid_Positions(t *testing.T) {
	// inserted out of order: placement follows Order, not slice position
	nodes := nodesWithOrders(4, 1, 2, 3)

	got := Grid(nodes)

	assert.Equal(t, schema.Point{X: 200, Y: 100}, got["b"])
	assert.Equal(t, schema.Point{X: 450, Y: 100}, got["c"])
	assert.Equal(t, schema.Point{X: 700, Y: 100}, got["d"])
	assert.Equal(t, schema.Point{X: 200, Y: 250}, got["a"])
}

func TestGrid_Empty(t *testing.T) {
	assert.Empty(t, Grid(nil))
}

func TestLayered(t *testing.T) {
	nodes := nodesWithOrders(1, 2, 3, 4)
	edges := []schema.Edge{
		{From: "a", To: "b"},
		{From: "a", To: "c"},
		{From: "b", To: "d"},
	}

	got := Layered(nodes, edges)
	assert.Equal(t, schema.Point{X: 200, Y: 100}, got["a"])
	assert.Equal(t, schema.Point{X: 450, Y: 100}, got["b"])
	assert.Equal(t, schema.Point{X: 450, Y: 250}, got["c"])
	assert.Equal(t, schema.Point{X: 700, Y: 100}, got["d"])
}

func TestLayered_CycleFallsBackToGrid(t *testing.T) {
	nodes := nodesWithOrders(1, 2)
	edges := []schema.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}
	assert.Equal(t, Grid(nodes), Layered(nodes, edges))
}

func TestGrid_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("grid placement is stable across runs", prop.ForAll(
		func(orders []int) bool {
			nodes := nodesWithOrders(orders...)
			first := Grid(nodes)
			for i := range nodes {
				nodes[i].Position = first[nodes[i].ID]
			}
			second := Grid(nodes)
			if len(first) != len(second) {
				return false
			}
			for id, p := range first {
				if second[id] != p {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.IntRange(1, 50)),
	))

	properties.TestingRun(t)
}
