package graph

import (
	"slices"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// Layer is a set of nodes with no dependency edges between them, safe
// to process in parallel.
type Layer struct {
	Nodes []*manifest.DependencyGraphNode
}

// TopologicalSort returns the graph's nodes grouped into dependency
// layers using Kahn's algorithm, breaking ties within a layer by
// manifest.Category.Priority then id. It also stamps each node's
// TopologicalOrder and Depth as a side effect so later passes can read
// them without re-sorting.
func (g *Graph) TopologicalSort() ([]Layer, error) {
	if cycle := g.DetectCycle(); cycle != nil {
		return nil, NewCycleError(cycle)
	}

	inDegree := make(map[manifest.ToolID]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, edges := range g.outgoing {
		for _, e := range orderingEdges(edges) {
			inDegree[e.From]++
		}
	}

	reverse := make(map[manifest.ToolID][]manifest.ToolID, len(g.nodes))
	for from, edges := range g.outgoing {
		for _, e := range orderingEdges(edges) {
			reverse[e.To] = append(reverse[e.To], from)
		}
	}

	queue := make([]manifest.ToolID, 0, len(g.nodes))
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	slices.SortFunc(queue, compareToolID)

	var layers []Layer
	order := 0
	depth := 0
	for len(queue) > 0 {
		layer := Layer{Nodes: make([]*manifest.DependencyGraphNode, 0, len(queue))}
		var next []manifest.ToolID

		for _, id := range queue {
			n := g.nodes[id]
			n.SetTopologicalOrder(order)
			n.SetDepth(depth)
			n.SetTraversal(manifest.StateVisited)
			order++
			layer.Nodes = append(layer.Nodes, n)

			for _, dependent := range reverse[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}

		sortLayer(layer.Nodes)
		layers = append(layers, layer)
		slices.SortFunc(next, compareToolID)
		queue = next
		depth++
	}

	return layers, nil
}

// sortLayer orders nodes within a layer by category priority, then by
// ID for determinism.
func sortLayer(nodes []*manifest.DependencyGraphNode) {
	slices.SortFunc(nodes, func(a, b *manifest.DependencyGraphNode) int {
		pa, pb := a.Manifest.Category.Priority(), b.Manifest.Category.Priority()
		if pa != pb {
			return pa - pb
		}
		return compareToolID(a.ID(), b.ID())
	})
}
