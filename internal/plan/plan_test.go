package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/graphbuild"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

func sysReq() manifest.SystemRequirements {
	return manifest.SystemRequirements{
		Platforms:     []manifest.Platform{manifest.PlatformLinux, manifest.PlatformMacOS},
		Architectures: []manifest.Architecture{manifest.ArchX64, manifest.ArchARM64},
	}
}

func diamondManifests() []manifest.ToolManifest {
	return []manifest.ToolManifest{
		{ID: "runtime", Name: "Runtime", Category: manifest.CategoryLanguage, SystemRequirements: sysReq()},
		{ID: "lib-a", Name: "Lib A", Category: manifest.CategoryBackend, SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "runtime", Type: manifest.DependencyRequired},
		}},
		{ID: "lib-b", Name: "Lib B", Category: manifest.CategoryBackend, SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "runtime", Type: manifest.DependencyRequired},
		}},
		{ID: "app", Name: "App", Category: manifest.CategoryFrontend, SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "lib-a", Type: manifest.DependencyRequired},
			{Target: "lib-b", Type: manifest.DependencyRequired},
		}},
	}
}

func indexOf(seq []manifest.ToolID, id manifest.ToolID) int {
	for i, v := range seq {
		if v == id {
			return i
		}
	}
	return -1
}

func TestPlanTopologicalOrdersDependenciesFirst(t *testing.T) {
	built := graphbuild.Build(diamondManifests(), manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	order := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"app"}, manifest.PlatformLinux, manifest.ArchX64, plan.DefaultOptions())

	require.True(t, order.Success)
	require.Len(t, order.InstallationSequence, 4)
	assert.Less(t, indexOf(order.InstallationSequence, "runtime"), indexOf(order.InstallationSequence, "lib-a"))
	assert.Less(t, indexOf(order.InstallationSequence, "runtime"), indexOf(order.InstallationSequence, "lib-b"))
	assert.Less(t, indexOf(order.InstallationSequence, "lib-a"), indexOf(order.InstallationSequence, "app"))
	assert.Less(t, indexOf(order.InstallationSequence, "lib-b"), indexOf(order.InstallationSequence, "app"))
}

func TestPlanBatchesIndependentSiblingsTogether(t *testing.T) {
	built := graphbuild.Build(diamondManifests(), manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	opts := plan.DefaultOptions()
	order := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"app"}, manifest.PlatformLinux, manifest.ArchX64, opts)

	require.True(t, order.Success)
	require.NotEmpty(t, order.Batches)
	assert.Equal(t, []manifest.ToolID{"runtime"}, order.Batches[0])
	found := false
	for _, batch := range order.Batches {
		if len(batch) == 2 {
			assert.Contains(t, batch, manifest.ToolID("lib-a"))
			assert.Contains(t, batch, manifest.ToolID("lib-b"))
			found = true
		}
	}
	assert.True(t, found, "expected lib-a and lib-b to share a batch")
}

func TestPlanDFSDefersBreakableCycle(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "tool-a", Name: "Tool A", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-b", Type: manifest.DependencyRequired},
		}},
		{ID: "tool-b", Name: "Tool B", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-a", Type: manifest.DependencyOptional},
		}},
	}
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	opts := plan.DefaultOptions()
	opts.Algorithm = plan.AlgorithmDFS
	order := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"tool-a", "tool-b"}, manifest.PlatformLinux, manifest.ArchX64, opts)

	require.True(t, order.Success)
	assert.Empty(t, order.CircularDependencies)
	assert.Contains(t, order.DeferredDependencies, manifest.ToolID("tool-a"))
}

func TestPlanStrategyExcludesOptionalWhenLazy(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "core", Name: "Core", SystemRequirements: sysReq()},
		{ID: "extra", Name: "Extra", SystemRequirements: sysReq()},
		{ID: "app", Name: "App", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "core", Type: manifest.DependencyRequired},
			{Target: "extra", Type: manifest.DependencyOptional},
		}},
	}
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	opts := plan.Options{Strategy: plan.StrategyLazy, Algorithm: plan.AlgorithmTopological, EnableParallel: true, MaxRetries: 3}
	order := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"app"}, manifest.PlatformLinux, manifest.ArchX64, opts)

	require.True(t, order.Success)
	assert.NotContains(t, order.InstallationSequence, manifest.ToolID("extra"))
	assert.Contains(t, order.InstallationSequence, manifest.ToolID("core"))
}

func TestPlanBatchesFourIndependentServicesTogether(t *testing.T) {
	services := []manifest.ToolID{"auth-service", "notification-service", "payment-service", "user-service"}
	manifests := []manifest.ToolManifest{
		{ID: "docker", Name: "Docker", SystemRequirements: sysReq()},
		{ID: "node", Name: "Node.js", SystemRequirements: sysReq()},
		{ID: "redis", Name: "Redis", SystemRequirements: sysReq()},
	}
	for _, s := range services {
		manifests = append(manifests, manifest.ToolManifest{
			ID: s, Name: string(s), SystemRequirements: sysReq(),
			Dependencies: []manifest.ToolDependency{
				{Target: "docker", Type: manifest.DependencyRequired},
				{Target: "node", Type: manifest.DependencyRequired},
				{Target: "redis", Type: manifest.DependencyRequired},
			},
		})
	}
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	order := p.Plan(context.Background(), built.Graph, services, manifest.PlatformLinux, manifest.ArchX64, plan.DefaultOptions())
	require.True(t, order.Success)

	for _, infra := range []manifest.ToolID{"docker", "node", "redis"} {
		for _, s := range services {
			assert.Less(t, indexOf(order.InstallationSequence, infra), indexOf(order.InstallationSequence, s))
		}
	}

	var serviceBatch []manifest.ToolID
	for _, batch := range order.Batches {
		if len(batch) == 4 {
			serviceBatch = batch
		}
	}
	require.NotNil(t, serviceBatch, "expected the four services to share one batch")
	assert.Equal(t, services, serviceBatch)

	// no pair within any batch may have a dependency path between them
	for _, batch := range order.Batches {
		for _, a := range batch {
			for _, b := range batch {
				if a != b {
					assert.False(t, built.Graph.HasPath(a, b), "%s and %s share a batch but are ordered", a, b)
				}
			}
		}
	}
}

func TestPlanIsCached(t *testing.T) {
	built := graphbuild.Build(diamondManifests(), manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	opts := plan.DefaultOptions()
	first := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"app"}, manifest.PlatformLinux, manifest.ArchX64, opts)
	second := p.Plan(context.Background(), built.Graph, []manifest.ToolID{"app"}, manifest.PlatformLinux, manifest.ArchX64, opts)
	assert.Same(t, first, second)
}

func TestPlanWithConflictResolutionPlansWithoutBlockingConflict(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "node", Name: "Node.js", SystemRequirements: sysReq(), VersionInfo: manifest.VersionInfo{
			AvailableVersions: []string{"12.0.0", "14.0.0", "16.0.0", "18.0.0"},
		}},
		{ID: "app", Name: "App", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "node", Type: manifest.DependencyRequired, MinVersion: "14.0.0"},
		}},
	}
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	require.True(t, built.Success())

	p := plan.NewPlanner()
	order, report := p.PlanWithConflictResolution(context.Background(), built.Graph, built.Conflicts,
		[]manifest.ToolID{"app"}, conflict.DefaultPolicy(), manifest.PlatformLinux, manifest.ArchX64, plan.DefaultOptions())

	require.NotNil(t, report)
	require.True(t, order.Success)
	assert.Contains(t, order.InstallationSequence, manifest.ToolID("node"))
}
