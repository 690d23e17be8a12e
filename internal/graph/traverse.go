package graph

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// Algorithm selects one of the traversal strategies Traverse supports.
type Algorithm string

const (
	// AlgorithmDFS visits start's reachable set depth-first, in edge
	// insertion order.
	AlgorithmDFS Algorithm = "dfs"
	// AlgorithmBFS visits start's reachable set breadth-first, level
	// by level.
	AlgorithmBFS Algorithm = "bfs"
	// AlgorithmTopological returns start's reachable set in global
	// topological order (dependencies before dependents).
	AlgorithmTopological Algorithm = "topological"
	// AlgorithmDependencyFirst post-order DFS: every node a tool
	// depends on is visited before the tool itself, for "install
	// leaves up" walks distinct from a full topological sort of the
	// whole graph.
	AlgorithmDependencyFirst Algorithm = "dependency-first"
	// AlgorithmCategoryFirst groups start's reachable set by
	// manifest.Category.Priority, visiting whole categories in
	// priority order before moving to the next.
	AlgorithmCategoryFirst Algorithm = "category-first"
	// AlgorithmDijkstra orders start's reachable set by ascending
	// cumulative edge weight. Required edges weigh more than optional
	// ones, so a node reached over optional edges comes before one at
	// the same hop count reached over required edges.
	AlgorithmDijkstra Algorithm = "dijkstra"
)

// Traverse walks the graph from start using algo, returning visited
// node IDs in the order algo defines. Unknown algorithms return an
// error rather than silently falling back to a default, since a typo
// in a planner's algorithm name should surface immediately.
func (g *Graph) Traverse(start manifest.ToolID, algo Algorithm) ([]manifest.ToolID, error) {
	if !g.HasNode(start) {
		return nil, fmt.Errorf("graph: unknown start node %s", start)
	}
	switch algo {
	case AlgorithmDFS:
		return g.traverseDFS(start), nil
	case AlgorithmBFS:
		return g.traverseBFS(start), nil
	case AlgorithmTopological:
		return g.traverseTopological(start)
	case AlgorithmDependencyFirst:
		return g.traverseDependencyFirst(start), nil
	case AlgorithmCategoryFirst:
		return g.traverseCategoryFirst(start), nil
	case AlgorithmDijkstra:
		return g.traverseDijkstra(start), nil
	default:
		return nil, fmt.Errorf("graph: unknown traversal algorithm %q", algo)
	}
}

func (g *Graph) traverseDFS(start manifest.ToolID) []manifest.ToolID {
	visited := map[manifest.ToolID]bool{}
	var order []manifest.ToolID
	var visit func(id manifest.ToolID)
	visit = func(id manifest.ToolID) {
		if visited[id] {
			return
		}
		visited[id] = true
		order = append(order, id)
		for _, e := range dependencyEdges(g.outgoing[id]) {
			visit(e.To)
		}
	}
	visit(start)
	return order
}

func (g *Graph) traverseBFS(start manifest.ToolID) []manifest.ToolID {
	visited := map[manifest.ToolID]bool{start: true}
	queue := []manifest.ToolID{start}
	var order []manifest.ToolID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, e := range dependencyEdges(g.outgoing[id]) {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return order
}

// traverseTopological restricts the graph's global topological order
// to the subset reachable from start.
func (g *Graph) traverseTopological(start manifest.ToolID) ([]manifest.ToolID, error) {
	layers, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	reachable := map[manifest.ToolID]bool{}
	for _, id := range g.traverseDFS(start) {
		reachable[id] = true
	}
	var order []manifest.ToolID
	for _, layer := range layers {
		for _, n := range layer.Nodes {
			if reachable[n.ID()] {
				order = append(order, n.ID())
			}
		}
	}
	return order, nil
}

func (g *Graph) traverseDependencyFirst(start manifest.ToolID) []manifest.ToolID {
	visited := map[manifest.ToolID]bool{}
	var order []manifest.ToolID
	var visit func(id manifest.ToolID)
	visit = func(id manifest.ToolID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, e := range dependencyEdges(g.outgoing[id]) {
			visit(e.To)
		}
		order = append(order, id)
	}
	visit(start)
	return order
}

func (g *Graph) traverseCategoryFirst(start manifest.ToolID) []manifest.ToolID {
	reachable := g.traverseBFS(start)
	slices.SortFunc(reachable, func(a, b manifest.ToolID) int {
		na, _ := g.GetNode(a)
		nb, _ := g.GetNode(b)
		pa, pb := na.Manifest.Category.Priority(), nb.Manifest.Category.Priority()
		if pa != pb {
			return pa - pb
		}
		return compareToolID(a, b)
	})
	return reachable
}

// toolHeapItem is one entry in the Dijkstra priority queue.
type toolHeapItem struct {
	id   manifest.ToolID
	dist int
}

type toolHeap []toolHeapItem

func (h toolHeap) Len() int            { return len(h) }
func (h toolHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h toolHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *toolHeap) Push(x any)         { *h = append(*h, x.(toolHeapItem)) }
func (h *toolHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// traverseDijkstra orders start's reachable set by ascending
// cumulative edge weight, treating each edge's manifest.Weight
// (higher for required dependencies) as its traversal cost.
func (g *Graph) traverseDijkstra(start manifest.ToolID) []manifest.ToolID {
	dist := map[manifest.ToolID]int{start: 0}
	visited := map[manifest.ToolID]bool{}
	pq := &toolHeap{{id: start, dist: 0}}
	var order []manifest.ToolID

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(toolHeapItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		order = append(order, cur.id)

		for _, e := range dependencyEdges(g.outgoing[cur.id]) {
			next := cur.dist + e.Weight
			if existing, ok := dist[e.To]; !ok || next < existing {
				dist[e.To] = next
				heap.Push(pq, toolHeapItem{id: e.To, dist: next})
			}
		}
	}
	return order
}
