package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sibilleb/hatstart/internal/manifest"
)

func TestCategoryPriorityOrdering(t *testing.T) {
	assert.Less(t, manifest.CategoryLanguage.Priority(), manifest.CategoryDevOps.Priority())
	assert.Less(t, manifest.CategoryDevOps.Priority(), manifest.CategoryProductivity.Priority())
	assert.Equal(t, 1000, manifest.Category("unknown-category").Priority())
}

func TestToolDependencyAppliesTo(t *testing.T) {
	d := manifest.ToolDependency{Target: "docker", Type: manifest.DependencyRequired}
	assert.True(t, d.AppliesTo(manifest.PlatformLinux))

	restricted := manifest.ToolDependency{
		Target:    "wsl",
		Type:      manifest.DependencyOptional,
		Platforms: []manifest.Platform{manifest.PlatformWindows},
	}
	assert.True(t, restricted.AppliesTo(manifest.PlatformWindows))
	assert.False(t, restricted.AppliesTo(manifest.PlatformLinux))
}

func TestSystemRequirementsSupport(t *testing.T) {
	r := manifest.SystemRequirements{
		Platforms:     []manifest.Platform{manifest.PlatformLinux, manifest.PlatformMacOS},
		Architectures: []manifest.Architecture{manifest.ArchARM64, manifest.ArchX64},
	}
	assert.True(t, r.SupportsPlatform(manifest.PlatformLinux))
	assert.False(t, r.SupportsPlatform(manifest.PlatformWindows))
	assert.True(t, r.SupportsArchitecture(manifest.ArchX64))
	assert.False(t, r.SupportsArchitecture(manifest.ArchARM))
}

func TestNodeLifecycle(t *testing.T) {
	n := manifest.NewNode(manifest.ToolManifest{ID: "node", Category: manifest.CategoryLanguage})
	assert.Equal(t, manifest.StatusNotInstalled, n.Status())
	assert.Equal(t, manifest.StateUnvisited, n.Traversal())
	_, ok := n.ResolvedVersion()
	assert.False(t, ok)

	n.AddConstraint(">=18.0.0")
	n.AddConstraint("*")
	assert.Equal(t, []string{">=18.0.0"}, n.Constraints())

	n.SetResolvedVersion("18.2.0")
	v, ok := n.ResolvedVersion()
	assert.True(t, ok)
	assert.Equal(t, "18.2.0", v)

	n.SetTraversal(manifest.StateResolved)
	assert.Equal(t, manifest.StateResolved, n.Traversal())

	n.IncDependentCount()
	n.IncDependentCount()
	assert.Equal(t, 2, n.DependentCount())
}

func TestNodePlatformSupport(t *testing.T) {
	n := manifest.NewNode(manifest.ToolManifest{
		ID: "postgres",
		SystemRequirements: manifest.SystemRequirements{
			Platforms: []manifest.Platform{manifest.PlatformLinux, manifest.PlatformMacOS},
		},
	})
	support := n.PlatformSupport([]manifest.Platform{manifest.PlatformLinux, manifest.PlatformWindows})
	assert.True(t, support[manifest.PlatformLinux])
	assert.False(t, support[manifest.PlatformWindows])
}

func TestEdgeWeightAndBreakable(t *testing.T) {
	required := manifest.NewEdge("app", manifest.ToolDependency{Target: "runtime", Type: manifest.DependencyRequired})
	assert.Equal(t, 2, required.Weight)
	assert.True(t, required.Required())
	assert.False(t, required.Breakable())

	optional := manifest.NewEdge("app", manifest.ToolDependency{Target: "linter", Type: manifest.DependencyOptional})
	assert.Equal(t, 1, optional.Weight)
	assert.False(t, optional.Required())
	assert.True(t, optional.Breakable())

	assert.Equal(t, manifest.EdgePending, required.Resolution())
	required.SetResolution(manifest.EdgeSatisfied)
	assert.Equal(t, manifest.EdgeSatisfied, required.Resolution())
}
