// Package graph implements the Dependency Graph: a typed multigraph of
// manifest.DependencyGraphNode connected by manifest.DependencyGraphEdge,
// over the arbitrary, catalog-driven tool categories the resolver core
// works with.
//
// A *Graph is not safe for concurrent mutation. Callers building,
// detecting conflicts on, and planning from the same graph do so from a
// single goroutine per call; concurrent reads of an already-built graph
// are fine.
package graph

import (
	"fmt"
	"slices"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// Graph is a directed multigraph over tool IDs. Multiple edges between
// the same pair of nodes are permitted when they carry different
// platform restrictions, so an edge is effectively keyed by
// (from, to, platform-restriction).
type Graph struct {
	nodes    map[manifest.ToolID]*manifest.DependencyGraphNode
	outgoing map[manifest.ToolID][]*manifest.DependencyGraphEdge
	incoming map[manifest.ToolID][]*manifest.DependencyGraphEdge
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[manifest.ToolID]*manifest.DependencyGraphNode),
		outgoing: make(map[manifest.ToolID][]*manifest.DependencyGraphEdge),
		incoming: make(map[manifest.ToolID][]*manifest.DependencyGraphEdge),
	}
}

// AddNode registers m's node, returning the existing node unchanged if
// one with the same ID is already present.
func (g *Graph) AddNode(m manifest.ToolManifest) *manifest.DependencyGraphNode {
	if n, ok := g.nodes[m.ID]; ok {
		return n
	}
	n := manifest.NewNode(m)
	g.nodes[m.ID] = n
	return n
}

// HasNode reports whether id is present in the graph.
func (g *Graph) HasNode(id manifest.ToolID) bool {
	_, ok := g.nodes[id]
	return ok
}

// GetNode returns the node for id, if present.
func (g *Graph) GetNode(id manifest.ToolID) (*manifest.DependencyGraphNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// AddEdge adds a directed edge from -> to built from dep. Both nodes
// must already exist; AddEdge panics otherwise, forcing callers (the
// Graph Builder) to add nodes before wiring dependencies between them.
// If an edge with the same (from, to, platform-restriction) already
// exists, that edge is returned and no new one is added.
func (g *Graph) AddEdge(from manifest.ToolID, dep manifest.ToolDependency) *manifest.DependencyGraphEdge {
	if _, ok := g.nodes[from]; !ok {
		panic(fmt.Sprintf("graph: node %s does not exist", from))
	}
	if _, ok := g.nodes[dep.Target]; !ok {
		panic(fmt.Sprintf("graph: node %s does not exist", dep.Target))
	}
	for _, existing := range g.outgoing[from] {
		if existing.To == dep.Target && slices.Equal(existing.Dependency.Platforms, dep.Platforms) {
			return existing
		}
	}
	e := manifest.NewEdge(from, dep)
	g.outgoing[from] = append(g.outgoing[from], e)
	g.incoming[dep.Target] = append(g.incoming[dep.Target], e)
	if target, ok := g.nodes[dep.Target]; ok {
		target.IncDependentCount()
	}
	return e
}

// RemoveNode deletes id and every edge touching it, reporting whether
// id was present. Nodes that depended on id lose their outgoing edge
// to it; nodes id depended on have their dependent count decremented
// once per removed edge, keeping DependentCount() accurate for the
// nodes that remain.
func (g *Graph) RemoveNode(id manifest.ToolID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for _, e := range g.outgoing[id] {
		if target, ok := g.nodes[e.To]; ok {
			target.DecDependentCount()
		}
		g.incoming[e.To] = pruneEdge(g.incoming[e.To], e)
	}
	for _, e := range g.incoming[id] {
		g.outgoing[e.From] = pruneEdge(g.outgoing[e.From], e)
	}
	delete(g.outgoing, id)
	delete(g.incoming, id)
	delete(g.nodes, id)
	return true
}

func pruneEdge(edges []*manifest.DependencyGraphEdge, target *manifest.DependencyGraphEdge) []*manifest.DependencyGraphEdge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

// GetEdge returns the first edge from -> to, if any.
func (g *Graph) GetEdge(from, to manifest.ToolID) (*manifest.DependencyGraphEdge, bool) {
	for _, e := range g.outgoing[from] {
		if e.To == to {
			return e, true
		}
	}
	return nil, false
}

// OutgoingEdges returns every edge leaving id, in insertion order.
func (g *Graph) OutgoingEdges(id manifest.ToolID) []*manifest.DependencyGraphEdge {
	return g.outgoing[id]
}

// IncomingEdges returns every edge arriving at id, in insertion order.
func (g *Graph) IncomingEdges(id manifest.ToolID) []*manifest.DependencyGraphEdge {
	return g.incoming[id]
}

// AllNodes returns every node, sorted by ID for deterministic
// iteration order.
func (g *Graph) AllNodes() []*manifest.DependencyGraphNode {
	out := make([]*manifest.DependencyGraphNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *manifest.DependencyGraphNode) int {
		return compareToolID(a.ID(), b.ID())
	})
	return out
}

// AllEdges returns every edge in the graph, sorted by (from, to) for
// deterministic iteration order.
func (g *Graph) AllEdges() []*manifest.DependencyGraphEdge {
	var out []*manifest.DependencyGraphEdge
	for _, edges := range g.outgoing {
		out = append(out, edges...)
	}
	slices.SortFunc(out, func(a, b *manifest.DependencyGraphEdge) int {
		if c := compareToolID(a.From, b.From); c != 0 {
			return c
		}
		return compareToolID(a.To, b.To)
	})
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.outgoing {
		n += len(edges)
	}
	return n
}

// HasPath reports whether a directed path exists from -> to. Edges of
// type DependencyConflicts are never admitted onto the graph (the
// builder records them separately), so every edge walked here is a
// genuine install-order dependency; this is what the planner's
// parallel batching relies on to decide two tools can share a batch.
func (g *Graph) HasPath(from, to manifest.ToolID) bool {
	if from == to {
		return true
	}
	visited := map[manifest.ToolID]bool{from: true}
	stack := []manifest.ToolID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.outgoing[cur] {
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				visited[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

func compareToolID(a, b manifest.ToolID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
