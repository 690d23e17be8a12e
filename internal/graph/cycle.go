package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// color3 is the classic three-color DFS marking, named to avoid
// clashing with the fatih/color package import this file also needs
// for FormatCycle.
type color3 int

const (
	white color3 = iota
	gray
	black
)

// CycleError describes one circular dependency path.
type CycleError struct {
	Cycle []manifest.ToolID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %v", e.Cycle)
}

// FormatCycle renders the cycle as a colorized, arrow-connected path
// for terminal output.
func (e *CycleError) FormatCycle(noColor bool) string {
	if len(e.Cycle) == 0 {
		return "circular dependency detected (empty cycle)"
	}
	if noColor {
		color.NoColor = true
	}

	var sb strings.Builder
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	sb.WriteString(red.Sprint("Error: circular dependency detected"))
	sb.WriteString("\n\n")
	for i, node := range e.Cycle {
		sb.WriteString("  ")
		if i == len(e.Cycle)-1 {
			sb.WriteString(red.Sprintf("%s", node))
			sb.WriteString(yellow.Sprint("  ← cycle"))
		} else {
			sb.WriteString(cyan.Sprintf("%s", node))
		}
		sb.WriteString("\n")
		if i < len(e.Cycle)-1 {
			sb.WriteString("      ")
			sb.WriteString(yellow.Sprint("↓"))
			sb.WriteString(" depends on\n")
		}
	}
	return sb.String()
}

// DetectCycle returns the first cycle found, or nil if the graph is
// acyclic. "conflicts"-typed edges do not participate: they express
// mutual exclusion, not a build/install ordering dependency, so they
// are never part of a circular-dependency path. Edges whose resolution
// is deferred or unsatisfied are skipped as well (orderingEdges).
func (g *Graph) DetectCycle() []manifest.ToolID {
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		return nil
	}
	return cycles[0]
}

// DetectCycles returns every distinct simple cycle in the graph, each
// in canonical rotation (smallest node id first, closing node repeated
// at the end) and deduplicated, so the same cycle found from two
// different starting nodes is reported once and identically. The
// Conflict Detector needs the full set, not just the first cycle, to
// report every circular-dependency conflict in one pass.
func (g *Graph) DetectCycles() [][]manifest.ToolID {
	col := make(map[manifest.ToolID]color3, len(g.nodes))
	var path []manifest.ToolID
	seen := make(map[string]bool)
	var cycles [][]manifest.ToolID

	var dfs func(id manifest.ToolID)
	dfs = func(id manifest.ToolID) {
		col[id] = gray
		path = append(path, id)

		for _, e := range orderingEdges(g.outgoing[id]) {
			switch col[e.To] {
			case gray:
				cycle := canonicalCycle(extractCycle(path, e.To))
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			case white:
				dfs(e.To)
			}
		}

		path = path[:len(path)-1]
		col[id] = black
	}

	for _, n := range g.AllNodes() {
		if col[n.ID()] == white {
			dfs(n.ID())
		}
	}
	return cycles
}

// dependencyEdges filters out conflicts-typed edges, which express
// mutual exclusion rather than an install-order dependency.
func dependencyEdges(edges []*manifest.DependencyGraphEdge) []*manifest.DependencyGraphEdge {
	out := make([]*manifest.DependencyGraphEdge, 0, len(edges))
	for _, e := range edges {
		if e.Dependency.Type != manifest.DependencyConflicts {
			out = append(out, e)
		}
	}
	return out
}

// orderingEdges further drops edges whose resolution a resolver or
// planner has softened (deferred or downgraded-out): those no longer
// impose an install-order constraint, so they participate in neither
// cycle detection nor topological ordering. They stay visible to the
// reachability traversals — a deferred dependency is still installed,
// just later.
func orderingEdges(edges []*manifest.DependencyGraphEdge) []*manifest.DependencyGraphEdge {
	out := make([]*manifest.DependencyGraphEdge, 0, len(edges))
	for _, e := range dependencyEdges(edges) {
		switch e.Resolution() {
		case manifest.EdgeDeferred, manifest.EdgeUnsatisfied:
			continue
		}
		out = append(out, e)
	}
	return out
}

func extractCycle(path []manifest.ToolID, start manifest.ToolID) []manifest.ToolID {
	idx := slices.Index(path, start)
	cycle := append([]manifest.ToolID{}, path[idx:]...)
	cycle = append(cycle, start)
	return cycle
}

// canonicalCycle rotates a cycle (closing node included) so it starts
// at its lexicographically smallest member, preserving the cyclic edge
// adjacency, so identical cycles discovered from different start
// points compare and render identically.
func canonicalCycle(cycle []manifest.ToolID) []manifest.ToolID {
	if len(cycle) <= 2 {
		return cycle
	}
	body := cycle[:len(cycle)-1]
	minIdx := 0
	for i, id := range body {
		if id < body[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]manifest.ToolID{}, body[minIdx:]...), body[:minIdx]...)
	return append(rotated, rotated[0])
}

func cycleKey(cycle []manifest.ToolID) string {
	if len(cycle) <= 1 {
		return ""
	}
	body := cycle[:len(cycle)-1]
	parts := make([]string, len(body))
	for i, id := range body {
		parts[i] = string(id)
	}
	return strings.Join(parts, ">")
}

// NewCycleError builds a CycleError from a cycle path.
func NewCycleError(cycle []manifest.ToolID) *CycleError {
	return &CycleError{Cycle: cycle}
}
