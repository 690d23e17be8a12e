// Package graphbuild implements the Graph Builder: the component that
// ingests a catalog of manifest.ToolManifest values and produces a
// validated *graph.Graph. Validation accumulates diagnostics instead
// of aborting on the first bad manifest, so one broken catalog entry
// never hides the rest.
package graphbuild

import (
	"log/slog"
	"strconv"
	"time"

	hserrors "github.com/sibilleb/hatstart/internal/errors"
	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
)

// Options configures a Build call.
type Options struct {
	IncludeOptional            bool
	IncludeSuggested           bool
	MaxNodes                   int
	ValidateDuringConstruction bool
}

// DefaultOptions returns the builder's defaults: optional edges in,
// suggested edges out.
func DefaultOptions() Options {
	return Options{IncludeOptional: true, IncludeSuggested: false}
}

// Statistics reports what a Build call did.
type Statistics struct {
	ManifestsProcessed   int
	NodesCreated         int
	EdgesCreated         int
	DependenciesResolved int
	ConstructionTime     time.Duration
}

// Result is the outcome of Build: the graph plus diagnostics.
type Result struct {
	Graph      *graph.Graph
	Conflicts  map[manifest.ToolID][]manifest.ToolDependency
	Errors     hserrors.Diagnostics
	Warnings   hserrors.Diagnostics
	Statistics Statistics
}

// Success reports whether the build produced no errors, per the
// "graph built on best-effort basis" error-handling rule — warnings
// never affect Success.
func (r *Result) Success() bool { return len(r.Errors) == 0 }

// Builder incrementally ingests manifests into a *graph.Graph,
// recording conflicts-typed edges in a side map the Conflict Detector
// consumes separately: conflicts edges are never admitted as graph
// dependency edges and do not participate in reachability.
type Builder struct {
	g         *graph.Graph
	conflicts map[manifest.ToolID][]manifest.ToolDependency
	opts      Options
}

// New creates a Builder with opts (zero-value Options means "exclude
// everything optional/suggested"; callers normally start from
// DefaultOptions()).
func New(opts Options) *Builder {
	return &Builder{
		g:         graph.New(),
		conflicts: make(map[manifest.ToolID][]manifest.ToolDependency),
		opts:      opts,
	}
}

// Graph returns the builder's underlying graph.
func (b *Builder) Graph() *graph.Graph { return b.g }

// Conflicts returns the recorded conflicts-typed dependency edges,
// keyed by the declaring tool, for the Conflict Detector's
// cross-category analysis.
func (b *Builder) Conflicts() map[manifest.ToolID][]manifest.ToolDependency { return b.conflicts }

// Build ingests manifests into a fresh graph, validating each manifest
// and admitting edges per opts, and returns the combined Result.
func Build(manifests []manifest.ToolManifest, targetPlatform manifest.Platform, opts Options) *Result {
	start := time.Now()
	b := New(opts)

	res := &Result{}
	seen := make(map[manifest.ToolID]bool, len(manifests))

	for i, m := range manifests {
		path := pathForIndex(i)
		if opts.MaxNodes > 0 && res.Statistics.NodesCreated >= opts.MaxNodes {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeMaxNodesExceeded, path,
				"node budget of "+strconv.Itoa(opts.MaxNodes)+" exceeded; remaining manifests skipped"))
			break
		}
		if m.ID == "" {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeMissingToolID, path, "tool id is required"))
			continue
		}
		if m.Name == "" {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeMissingToolName, path+"/"+string(m.ID), "tool name is required"))
			continue
		}
		if len(m.SystemRequirements.Platforms) == 0 {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeEmptyPlatformSet, path, "system requirements must list at least one platform"))
			continue
		}
		if len(m.SystemRequirements.Architectures) == 0 {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeEmptyArchSet, path, "system requirements must list at least one architecture"))
			continue
		}
		if seen[m.ID] {
			res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeDuplicateTool, path, "duplicate tool id "+string(m.ID)))
			continue
		}
		seen[m.ID] = true

		// self-loop dependency is a circular-dependency construction error
		selfLoop := false
		for _, dep := range m.Dependencies {
			if dep.Target == m.ID {
				res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeCircularDependencies, path, "tool "+string(m.ID)+" depends on itself"))
				selfLoop = true
				break
			}
		}
		if selfLoop {
			continue
		}

		if targetPlatform.Valid() && !m.SystemRequirements.SupportsPlatform(targetPlatform) {
			res.Warnings = append(res.Warnings, hserrors.NewWarning(hserrors.CodePlatformIncompatible, path+"/"+string(m.ID),
				"tool "+string(m.ID)+" does not support target platform "+string(targetPlatform)))
		}

		b.g.AddNode(m)
		res.Statistics.NodesCreated++
		res.Statistics.ManifestsProcessed++
	}

	for _, m := range manifests {
		if !seen[m.ID] {
			continue
		}
		for _, dep := range m.Dependencies {
			path := string(m.ID) + "/dependencies/" + string(dep.Target)
			if dep.Target == "" {
				res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeInvalidDependency, path, "dependency target id is empty"))
				continue
			}
			if dep.Type == manifest.DependencyConflicts {
				b.conflicts[m.ID] = append(b.conflicts[m.ID], dep)
				continue
			}
			if !b.g.HasNode(dep.Target) {
				if dep.Type == manifest.DependencyRequired {
					res.Errors = append(res.Errors, hserrors.NewError(hserrors.CodeMissingRequiredDependency, path,
						"required dependency "+string(dep.Target)+" not found in catalog"))
				} else {
					res.Warnings = append(res.Warnings, hserrors.NewWarning(hserrors.CodeMissingDependency, path,
						"dependency "+string(dep.Target)+" not found in catalog"))
				}
				continue
			}
			if !admit(dep.Type, opts) {
				continue
			}
			b.g.AddEdge(m.ID, dep)
			res.Statistics.EdgesCreated++
			res.Statistics.DependenciesResolved++
		}
	}

	res.Graph = b.g
	res.Conflicts = b.conflicts
	res.Statistics.ConstructionTime = time.Since(start)
	slog.Debug("graph build complete",
		"manifests", res.Statistics.ManifestsProcessed,
		"nodes", res.Statistics.NodesCreated,
		"edges", res.Statistics.EdgesCreated,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	)
	return res
}

// admit implements the edge-admission rule: optional edges need
// IncludeOptional, suggests edges need IncludeSuggested, required
// edges are always admitted.
func admit(t manifest.DependencyType, opts Options) bool {
	if t == manifest.DependencyOptional && !opts.IncludeOptional {
		return false
	}
	if t == manifest.DependencySuggests && !opts.IncludeSuggested {
		return false
	}
	return true
}

func pathForIndex(i int) string {
	return "manifests[" + strconv.Itoa(i) + "]"
}

// Add incrementally adds one manifest to an existing builder's graph.
// It reports false and records a DUPLICATE_TOOL error if the id
// already exists.
func (b *Builder) Add(m manifest.ToolManifest) (bool, *hserrors.Diagnostic) {
	if m.ID == "" {
		return false, hserrors.NewError(hserrors.CodeMissingToolID, "", "tool id is required")
	}
	if b.g.HasNode(m.ID) {
		return false, hserrors.NewError(hserrors.CodeDuplicateTool, string(m.ID), "duplicate tool id "+string(m.ID))
	}
	b.g.AddNode(m)
	for _, dep := range m.Dependencies {
		if dep.Type == manifest.DependencyConflicts {
			b.conflicts[m.ID] = append(b.conflicts[m.ID], dep)
			continue
		}
		if !b.g.HasNode(dep.Target) || !admit(dep.Type, b.opts) {
			continue
		}
		b.g.AddEdge(m.ID, dep)
	}
	return true, nil
}

// Remove deletes id's node and every edge touching it from the graph
// via graph.Graph.RemoveNode, and drops any conflicts-typed
// dependencies id declared, so a subsequent Add/Conflicts/Detect call
// no longer sees id at all. Reports false if id was not present.
func (b *Builder) Remove(id manifest.ToolID) bool {
	removed := b.g.RemoveNode(id)
	if removed {
		delete(b.conflicts, id)
	}
	return removed
}
