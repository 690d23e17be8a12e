package graph

import "github.com/sibilleb/hatstart/internal/manifest"

// Statistics summarizes shape metrics about a Graph for planner
// reporting and diagnostics output.
type Statistics struct {
	NodeCount      int
	EdgeCount      int
	LayerCount     int
	MaxDepth       int
	CycleCount     int
	RequiredEdges  int
	OptionalEdges  int
	ConflictsEdges int
}

// Statistics computes a snapshot of the graph's current shape. When the
// graph has no cycle it runs TopologicalSort, which stamps each node's
// TopologicalOrder and Depth as a side effect.
func (g *Graph) Statistics() Statistics {
	stats := Statistics{
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
	}
	for _, e := range g.AllEdges() {
		switch e.Dependency.Type {
		case manifest.DependencyRequired:
			stats.RequiredEdges++
		case manifest.DependencyConflicts:
			stats.ConflictsEdges++
		default:
			stats.OptionalEdges++
		}
	}
	stats.CycleCount = len(g.DetectCycles())
	if stats.CycleCount == 0 {
		if layers, err := g.TopologicalSort(); err == nil {
			stats.LayerCount = len(layers)
			stats.MaxDepth = len(layers) - 1
			if stats.MaxDepth < 0 {
				stats.MaxDepth = 0
			}
		}
	}
	return stats
}
