package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/core"
	"github.com/sibilleb/hatstart/internal/manifest"
)

func sysReq() manifest.SystemRequirements {
	return manifest.SystemRequirements{
		Platforms:     []manifest.Platform{manifest.PlatformLinux, manifest.PlatformMacOS},
		Architectures: []manifest.Architecture{manifest.ArchX64, manifest.ArchARM64},
	}
}

func TestFullPipelineBuildDetectPlan(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "node", Name: "Node.js", Category: manifest.CategoryLanguage, SystemRequirements: sysReq()},
		{ID: "npm", Name: "npm", Category: manifest.CategoryLanguage, SystemRequirements: sysReq()},
		{ID: "react-app", Name: "React App", Category: manifest.CategoryFrontend, SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "node", Type: manifest.DependencyRequired, MinVersion: "16.0.0"},
			{Target: "npm", Type: manifest.DependencyRequired},
		}},
	}

	built := core.BuildGraph(manifests, manifest.PlatformLinux, manifest.ArchX64, core.DefaultBuildOptions())
	require.True(t, built.Success())

	report := core.DetectConflicts(built.Graph, built.Conflicts, []manifest.ToolID{"react-app"}, manifest.PlatformLinux, manifest.ArchX64, conflict.Options{})
	require.True(t, report.CanProceed)

	order := core.PlanInstallation(context.Background(), built.Graph, []manifest.ToolID{"react-app"}, manifest.PlatformLinux, manifest.ArchX64, core.DefaultPlanOptions())
	require.True(t, order.Success)
	assert.Contains(t, order.InstallationSequence, manifest.ToolID("node"))
	assert.Contains(t, order.InstallationSequence, manifest.ToolID("npm"))
}

func TestPlanWithConflictResolutionViaCore(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "tool-a", Name: "Tool A", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-b", Type: manifest.DependencyRequired},
		}},
		{ID: "tool-b", Name: "Tool B", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-a", Type: manifest.DependencyOptional},
		}},
	}
	built := core.BuildGraph(manifests, manifest.PlatformLinux, manifest.ArchX64, core.DefaultBuildOptions())
	require.True(t, built.Success())

	order, report := core.PlanWithConflictResolution(context.Background(), built.Graph, built.Conflicts,
		[]manifest.ToolID{"tool-a", "tool-b"}, conflict.DefaultPolicy(), manifest.PlatformLinux, manifest.ArchX64, core.DefaultPlanOptions())

	require.NotNil(t, report)
	require.True(t, order.Success)
	assert.Len(t, order.InstallationSequence, 2)
}
