package graph

import (
	"sort"

	"github.com/rendis/attackchain/pkg/schema"
)

// DAG is a read-only topological view of a chain snapshot, used by layout,
// stats, inspection and diagram export. Chains are not required to be
// acyclic while editing; Analyze reports a cycle as an error.
type DAG struct {
	Preds  map[string][]string // node ID → upstream node IDs
	Succs  map[string][]string // node ID → downstream node IDs
	Sorted []string            // topological order, ties broken by node order
	Roots  []string            // nodes without incoming edges
	Levels [][]string          // topological depth groups
	Depth  map[string]int
}

// Analyze builds the DAG view using Kahn's algorithm. On a cycle it returns
// the partially built DAG (Preds/Succs/Roots filled) with a CYCLE_DETECTED
// error whose details list the node ids left on the cycle.
func Analyze(nodes []schema.Node, edges []schema.Edge) (*DAG, error) {
	rank := make(map[string]int, len(nodes))
	for i, n := range nodes {
		rank[n.ID] = i
	}
	byRank := func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool { return less(nodes, rank, ids[i], ids[j]) })
	}

	dag := &DAG{
		Preds: make(map[string][]string, len(nodes)),
		Succs: make(map[string][]string, len(nodes)),
		Depth: make(map[string]int, len(nodes)),
	}
	for _, e := range edges {
		if _, ok := rank[e.From]; !ok {
			continue
		}
		if _, ok := rank[e.To]; !ok {
			continue
		}
		dag.Preds[e.To] = append(dag.Preds[e.To], e.From)
		dag.Succs[e.From] = append(dag.Succs[e.From], e.To)
	}

	inDegree := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = len(dag.Preds[n.ID])
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	byRank(queue)
	dag.Roots = append([]string(nil), queue...)

	sorted := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		next := append([]string(nil), dag.Succs[id]...)
		byRank(next)
		for _, s := range next {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(sorted) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if inDegree[n.ID] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		return dag, schema.NewError(schema.ErrCodeCycleDetected, "chain contains a dependency cycle").
			WithDetails(map[string]any{"nodes": stuck})
	}

	dag.Sorted = sorted
	dag.Levels = computeLevels(dag)
	return dag, nil
}

// computeLevels groups nodes by depth: max upstream depth + 1.
func computeLevels(dag *DAG) [][]string {
	maxLevel := 0
	for _, id := range dag.Sorted {
		d := 0
		for _, p := range dag.Preds[id] {
			if dag.Depth[p]+1 > d {
				d = dag.Depth[p] + 1
			}
		}
		dag.Depth[id] = d
		if d > maxLevel {
			maxLevel = d
		}
	}
	if len(dag.Sorted) == 0 {
		return nil
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range dag.Sorted {
		d := dag.Depth[id]
		levels[d] = append(levels[d], id)
	}
	return levels
}

// Upstream returns every node that can reach id, in no particular order.
func (d *DAG) Upstream(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), d.Preds[id]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, d.Preds[n]...)
	}
	return seen
}

// LongestPath returns the heaviest root-to-sink path weight. Only valid on
// an acyclic DAG (Sorted non-empty or no nodes).
func (d *DAG) LongestPath(weight func(id string) int) int {
	best := make(map[string]int, len(d.Sorted))
	max := 0
	for _, id := range d.Sorted {
		w := 0
		for _, p := range d.Preds[id] {
			if best[p] > w {
				w = best[p]
			}
		}
		best[id] = w + weight(id)
		if best[id] > max {
			max = best[id]
		}
	}
	return max
}

func less(nodes []schema.Node, rank map[string]int, a, b string) bool {
	na, nb := nodes[rank[a]], nodes[rank[b]]
	if na.Order != nb.Order {
		return na.Order < nb.Order
	}
	return rank[a] < rank[b]
}
