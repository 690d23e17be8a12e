package conflict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/graphbuild"
	"github.com/sibilleb/hatstart/internal/manifest"
)

func sysReq(platforms ...manifest.Platform) manifest.SystemRequirements {
	if len(platforms) == 0 {
		platforms = []manifest.Platform{manifest.PlatformLinux, manifest.PlatformMacOS, manifest.PlatformWindows}
	}
	return manifest.SystemRequirements{
		Platforms:     platforms,
		Architectures: []manifest.Architecture{manifest.ArchX64, manifest.ArchARM64},
	}
}

func buildAndDetect(t *testing.T, manifests []manifest.ToolManifest, targets []manifest.ToolID, platform manifest.Platform) *conflict.Report {
	t.Helper()
	built := graphbuild.Build(manifests, platform, graphbuild.DefaultOptions())
	require.NotNil(t, built.Graph)
	d := conflict.NewDetector()
	return d.Detect(built.Graph, built.Conflicts, targets, platform, manifest.ArchX64, conflict.Options{})
}

// Scenario 2: version conflict.
func TestVersionConflictScenario(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "node", Name: "Node.js", SystemRequirements: sysReq(), VersionInfo: manifest.VersionInfo{
			AvailableVersions: []string{"12.0.0", "13.0.0", "14.0.0", "16.0.0", "18.0.0"},
		}},
		{ID: "react-app", Name: "React App", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "node", Type: manifest.DependencyRequired, MinVersion: "16.0.0"},
		}},
		{ID: "legacy-tool", Name: "Legacy Tool", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "node", Type: manifest.DependencyRequired, MinVersion: "12.0.0", MaxVersion: "14.0.0"},
		}},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"react-app", "legacy-tool"}, manifest.PlatformLinux)

	require.False(t, report.CanProceed)
	var versionConflicts []*conflict.Conflict
	for _, c := range report.Conflicts {
		if c.Type == conflict.KindVersion {
			versionConflicts = append(versionConflicts, c)
		}
	}
	require.Len(t, versionConflicts, 1)
	assert.Equal(t, manifest.ToolID("node"), versionConflicts[0].VersionNode)
	assert.Len(t, versionConflicts[0].VersionRequirements, 2)
}

// Scenario 3: breakable cycle.
func TestBreakableCycleScenario(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "tool-a", Name: "Tool A", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-b", Type: manifest.DependencyRequired},
		}},
		{ID: "tool-b", Name: "Tool B", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "tool-a", Type: manifest.DependencyOptional},
		}},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"tool-a", "tool-b"}, manifest.PlatformLinux)

	var circular []*conflict.Conflict
	for _, c := range report.Conflicts {
		if c.Type == conflict.KindCircular {
			circular = append(circular, c)
		}
	}
	require.Len(t, circular, 1)
	assert.True(t, circular[0].Breakable)
	require.Len(t, circular[0].BreakPoints, 1)
	assert.Equal(t, manifest.ToolID("tool-b"), circular[0].BreakPoints[0].From)
	assert.Equal(t, manifest.ToolID("tool-a"), circular[0].BreakPoints[0].To)
	assert.Equal(t, "defer", circular[0].BreakPoints[0].Strategy)
	assert.False(t, circular[0].Blocking)

	resolver := conflict.NewResolver()
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	result := resolver.Resolve(built.Graph, report, []manifest.ToolID{"tool-a", "tool-b"}, conflict.DefaultPolicy(), nil)
	require.Empty(t, result.UnresolvedConflicts)
	e, ok := built.Graph.GetEdge("tool-b", "tool-a")
	require.True(t, ok)
	assert.Equal(t, manifest.EdgeDeferred, e.Resolution())
}

// Scenario 4: platform incompatibility.
func TestPlatformIncompatibilityScenario(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "windows-tool", Name: "Windows Tool", Category: manifest.CategoryDevOps, SystemRequirements: sysReq(manifest.PlatformWindows)},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"windows-tool"}, manifest.PlatformLinux)

	require.Len(t, report.Conflicts, 1)
	c := report.Conflicts[0]
	assert.Equal(t, conflict.KindPlatform, c.Type)
	assert.Equal(t, conflict.SeverityCritical, c.Severity)
	assert.True(t, c.Blocking)
	assert.False(t, report.CanProceed)
}

func TestPlatformIncompatibilityWithAlternative(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "windows-tool", Name: "Windows Tool", Category: manifest.CategoryDevOps, SystemRequirements: sysReq(manifest.PlatformWindows)},
		{ID: "linux-tool", Name: "Linux Tool", Category: manifest.CategoryDevOps, SystemRequirements: sysReq(manifest.PlatformLinux)},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"windows-tool", "linux-tool"}, manifest.PlatformLinux)

	var platformConflicts []*conflict.Conflict
	for _, c := range report.Conflicts {
		if c.Type == conflict.KindPlatform {
			platformConflicts = append(platformConflicts, c)
		}
	}
	require.Len(t, platformConflicts, 1)
	assert.Contains(t, platformConflicts[0].Alternatives, manifest.ToolID("linux-tool"))
}

// Scenario 5: parallelizable microservices (no conflicts expected).
func TestParallelizableMicroservicesScenario(t *testing.T) {
	services := []string{"auth-service", "user-service", "payment-service", "notification-service"}
	manifests := []manifest.ToolManifest{
		{ID: "docker", Name: "Docker", SystemRequirements: sysReq()},
		{ID: "node", Name: "Node.js", SystemRequirements: sysReq()},
		{ID: "redis", Name: "Redis", SystemRequirements: sysReq()},
	}
	var targets []manifest.ToolID
	for _, s := range services {
		manifests = append(manifests, manifest.ToolManifest{
			ID: manifest.ToolID(s), Name: s, SystemRequirements: sysReq(),
			Dependencies: []manifest.ToolDependency{
				{Target: "docker", Type: manifest.DependencyRequired},
				{Target: "node", Type: manifest.DependencyRequired},
				{Target: "redis", Type: manifest.DependencyRequired},
			},
		})
		targets = append(targets, manifest.ToolID(s))
	}
	report := buildAndDetect(t, manifests, targets, manifest.PlatformLinux)
	assert.True(t, report.CanProceed)
	assert.Empty(t, report.Conflicts)
}

func TestCrossCategoryConflict(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "npm", Name: "npm", SystemRequirements: sysReq()},
		{ID: "yarn", Name: "Yarn", SystemRequirements: sysReq()},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"npm", "yarn"}, manifest.PlatformLinux)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, conflict.KindCrossCategory, report.Conflicts[0].Type)
	assert.False(t, report.CanProceed)
}

func TestResourceConflict(t *testing.T) {
	// mysql and mariadb both claim port:3306.
	manifests := []manifest.ToolManifest{
		{ID: "mysql", Name: "MySQL", SystemRequirements: sysReq()},
		{ID: "mariadb", Name: "MariaDB", SystemRequirements: sysReq()},
	}
	report := buildAndDetect(t, manifests, []manifest.ToolID{"mysql", "mariadb"}, manifest.PlatformLinux)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, conflict.KindResource, report.Conflicts[0].Type)
}

func TestDetectIsIdempotent(t *testing.T) {
	manifests := []manifest.ToolManifest{
		{ID: "a", Name: "A", SystemRequirements: sysReq()},
		{ID: "b", Name: "B", SystemRequirements: sysReq(), Dependencies: []manifest.ToolDependency{
			{Target: "a", Type: manifest.DependencyRequired},
		}},
	}
	built := graphbuild.Build(manifests, manifest.PlatformLinux, graphbuild.DefaultOptions())
	d := conflict.NewDetector()
	r1 := d.Detect(built.Graph, built.Conflicts, []manifest.ToolID{"b"}, manifest.PlatformLinux, manifest.ArchX64, conflict.Options{EnableCaching: true})
	r2 := d.Detect(built.Graph, built.Conflicts, []manifest.ToolID{"b"}, manifest.PlatformLinux, manifest.ArchX64, conflict.Options{EnableCaching: true})
	assert.Equal(t, r1, r2)
}
