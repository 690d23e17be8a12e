// Package core exposes the resolver core as a narrow set of pure
// functions operating on in-memory graphs, performing no I/O itself.
// Concrete I/O lives behind the three consumed interfaces below, with
// adapters in internal/catalog, internal/probe, and the CLI.
package core

import (
	"context"
	"time"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/graphbuild"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

// ManifestSource produces the set of tool manifests the core resolves
// against. Concrete adapters live in internal/catalog.
type ManifestSource interface {
	Manifests(ctx context.Context) ([]manifest.ToolManifest, error)
}

// SystemInspector reports the target environment: its platform,
// architecture, and the set of tools already present. The concrete
// adapter lives in internal/probe.
type SystemInspector interface {
	Inspect(ctx context.Context) (platform manifest.Platform, arch manifest.Architecture, alreadyInstalled map[manifest.ToolID]bool, err error)
}

// UserPrompt is the resolver's cooperative-suspension point: a caller
// may answer confirmations and free-form input requests synchronously
// or asynchronously, or supply nil to fall back to policy defaults.
// RequestConfirmation's signature matches conflict.UserPrompt exactly,
// so any UserPrompt here satisfies it.
type UserPrompt interface {
	RequestConfirmation(message string, options []conflict.ConfirmOption) conflict.ConfirmOption
	RequestInput(prompt string, valueType string) (string, error)
	NotifyProgress(message string, percent int)
}

// BuildResult, ConflictReport, ResolutionResult and InstallationOrder
// are the core's public result shapes: straight aliases over the
// component packages' own result types so callers needn't import
// those packages directly.
type (
	BuildResult      = graphbuild.Result
	ConflictReport   = conflict.Report
	ResolutionResult = conflict.Result
	InstallationOrder = plan.Order
)

// BuildOptions configures BuildGraph; it is graphbuild.Options by
// another name so the public surface never leaks that package.
type BuildOptions = graphbuild.Options

// PlanOptions configures PlanInstallation and PlanWithConflictResolution.
type PlanOptions = plan.Options

// DefaultBuildOptions returns the builder's defaults.
func DefaultBuildOptions() BuildOptions { return graphbuild.DefaultOptions() }

// DefaultPlanOptions returns the planner's defaults.
func DefaultPlanOptions() PlanOptions { return plan.DefaultOptions() }

// BuildGraph constructs a dependency graph from manifests for the
// given platform. Architecture is accepted for signature symmetry with
// DetectConflicts and PlanInstallation; the graph builder itself only
// restricts by platform. Architecture is checked per node by the
// Detector's platform analysis; the Planner does not check it.
func BuildGraph(manifests []manifest.ToolManifest, platform manifest.Platform, _ manifest.Architecture, opts BuildOptions) *BuildResult {
	return graphbuild.Build(manifests, platform, opts)
}

// DetectConflicts runs the Conflict Detector over g restricted to
// targets' reachable set.
func DetectConflicts(g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts conflict.Options) *ConflictReport {
	return conflict.NewDetector().Detect(g, conflictsEdges, targets, platform, arch, opts)
}

// ResolveConflicts runs the Conflict Resolver over a report. A nil
// prompt falls back to the policy's risk-tolerance defaults.
func ResolveConflicts(g *graph.Graph, report *ConflictReport, targets []manifest.ToolID, policy conflict.Policy, prompt UserPrompt) *ResolutionResult {
	var cp conflict.UserPrompt
	if prompt != nil {
		cp = prompt
	}
	return conflict.NewResolver().Resolve(g, report, targets, policy, cp)
}

// PlanInstallation computes an InstallationOrder for targets over g.
func PlanInstallation(ctx context.Context, g *graph.Graph, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts PlanOptions) *InstallationOrder {
	return plan.NewPlanner().Plan(ctx, g, targets, platform, arch, opts)
}

// PlanWithConflictResolution is the compound operation: detect,
// resolve if blocking, re-plan with progressively more restrictive
// retries.
func PlanWithConflictResolution(ctx context.Context, g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, policy conflict.Policy, platform manifest.Platform, arch manifest.Architecture, opts PlanOptions) (*InstallationOrder, *ConflictReport) {
	return plan.NewPlanner().PlanWithConflictResolution(ctx, g, conflictsEdges, targets, policy, platform, arch, opts)
}

// WithTimeout is a small helper for the max-execution-time knob:
// callers construct a context deadline from their own configuration
// value and pass it to PlanInstallation or PlanWithConflictResolution.
func WithTimeout(parent context.Context, maxExecutionTime time.Duration) (context.Context, context.CancelFunc) {
	if maxExecutionTime <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, maxExecutionTime)
}
