package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
)

func tool(id string, cat manifest.Category) manifest.ToolManifest {
	return manifest.ToolManifest{ID: manifest.ToolID(id), Name: id, Category: cat}
}

func TestAddNodeIsIdempotent(t *testing.T) {
	g := graph.New()
	n1 := g.AddNode(tool("go", manifest.CategoryLanguage))
	n2 := g.AddNode(tool("go", manifest.CategoryLanguage))
	assert.Same(t, n1, n2)
	assert.Equal(t, 1, g.NodeCount())
}

func TestAddEdgePanicsOnMissingNode(t *testing.T) {
	g := graph.New()
	g.AddNode(tool("app", manifest.CategoryBackend))
	assert.Panics(t, func() {
		g.AddEdge("app", manifest.ToolDependency{Target: "missing", Type: manifest.DependencyRequired})
	})
}

func buildDiamond(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddNode(tool("app", manifest.CategoryBackend))
	g.AddNode(tool("lib-a", manifest.CategoryBackend))
	g.AddNode(tool("lib-b", manifest.CategoryBackend))
	g.AddNode(tool("runtime", manifest.CategoryLanguage))
	g.AddEdge("app", manifest.ToolDependency{Target: "lib-a", Type: manifest.DependencyRequired})
	g.AddEdge("app", manifest.ToolDependency{Target: "lib-b", Type: manifest.DependencyRequired})
	g.AddEdge("lib-a", manifest.ToolDependency{Target: "runtime", Type: manifest.DependencyRequired})
	g.AddEdge("lib-b", manifest.ToolDependency{Target: "runtime", Type: manifest.DependencyRequired})
	return g
}

func TestTopologicalSortOrdersDependenciesBeforeDependents(t *testing.T) {
	g := buildDiamond(t)
	layers, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, manifest.ToolID("runtime"), layers[0].Nodes[0].ID())
	assert.Equal(t, manifest.ToolID("app"), layers[2].Nodes[0].ID())
}

func TestDetectCycleFindsSimpleCycle(t *testing.T) {
	g := graph.New()
	g.AddNode(tool("a", manifest.CategoryBackend))
	g.AddNode(tool("b", manifest.CategoryBackend))
	g.AddEdge("a", manifest.ToolDependency{Target: "b", Type: manifest.DependencyRequired})
	g.AddEdge("b", manifest.ToolDependency{Target: "a", Type: manifest.DependencyRequired})

	cycle := g.DetectCycle()
	require.NotNil(t, cycle)
	assert.Len(t, cycle, 3)

	_, err := g.TopologicalSort()
	var cycleErr *graph.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestConflictsEdgesExcludedFromCycleDetection(t *testing.T) {
	g := graph.New()
	g.AddNode(tool("a", manifest.CategoryBackend))
	g.AddNode(tool("b", manifest.CategoryBackend))
	g.AddEdge("a", manifest.ToolDependency{Target: "b", Type: manifest.DependencyConflicts})
	g.AddEdge("b", manifest.ToolDependency{Target: "a", Type: manifest.DependencyConflicts})

	assert.Nil(t, g.DetectCycle())
	_, err := g.TopologicalSort()
	assert.NoError(t, err)
}

func TestHasPath(t *testing.T) {
	g := buildDiamond(t)
	assert.True(t, g.HasPath("app", "runtime"))
	assert.False(t, g.HasPath("runtime", "app"))
	assert.True(t, g.HasPath("app", "app"))
}

func TestTraverseAlgorithms(t *testing.T) {
	g := buildDiamond(t)

	dfs, err := g.Traverse("app", graph.AlgorithmDFS)
	require.NoError(t, err)
	assert.Equal(t, manifest.ToolID("app"), dfs[0])

	depFirst, err := g.Traverse("app", graph.AlgorithmDependencyFirst)
	require.NoError(t, err)
	assert.Equal(t, manifest.ToolID("app"), depFirst[len(depFirst)-1])
	assert.Equal(t, manifest.ToolID("runtime"), depFirst[0])

	topo, err := g.Traverse("app", graph.AlgorithmTopological)
	require.NoError(t, err)
	assert.Equal(t, manifest.ToolID("app"), topo[len(topo)-1])

	_, err = g.Traverse("app", graph.Algorithm("not-a-real-algorithm"))
	assert.Error(t, err)

	_, err = g.Traverse("missing-node", graph.AlgorithmBFS)
	assert.Error(t, err)
}

func TestRemoveNodePrunesTouchingEdges(t *testing.T) {
	g := buildDiamond(t)
	runtime, ok := g.GetNode("runtime")
	require.True(t, ok)
	assert.Equal(t, 2, runtime.DependentCount())

	assert.True(t, g.RemoveNode("lib-a"))
	assert.False(t, g.HasNode("lib-a"))
	assert.Equal(t, 3, g.NodeCount())

	_, ok = g.GetEdge("app", "lib-a")
	assert.False(t, ok)
	_, ok = g.GetEdge("lib-a", "runtime")
	assert.False(t, ok)
	assert.Equal(t, 1, runtime.DependentCount())

	for _, e := range g.OutgoingEdges("app") {
		assert.NotEqual(t, manifest.ToolID("lib-a"), e.To)
	}

	assert.False(t, g.RemoveNode("lib-a"), "removing an already-removed node reports false")
}

func TestStatistics(t *testing.T) {
	g := buildDiamond(t)
	stats := g.Statistics()
	assert.Equal(t, 4, stats.NodeCount)
	assert.Equal(t, 4, stats.EdgeCount)
	assert.Equal(t, 4, stats.RequiredEdges)
	assert.Equal(t, 0, stats.CycleCount)
	assert.Equal(t, 3, stats.LayerCount)
}
