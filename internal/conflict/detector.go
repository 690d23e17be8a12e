package conflict

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/semver"
)

// compromiseThreshold is the fraction of a node's incoming version
// constraints a compromise version must satisfy.
const compromiseThreshold = 0.8

// MutualExclusionGroup is one built-in combination of tool ids that
// cannot coexist in a reachable set (e.g. two competing package
// managers claiming the same role).
type MutualExclusionGroup struct {
	Name    string
	Members []manifest.ToolID
}

// DefaultMutualExclusionGroups returns the built-in cross-category
// conflict table. Real catalogs are free to supply their own via
// Detector.CrossCategoryGroups.
func DefaultMutualExclusionGroups() []MutualExclusionGroup {
	return []MutualExclusionGroup{
		{Name: "competing-node-package-managers", Members: []manifest.ToolID{"npm", "yarn", "pnpm"}},
		{Name: "competing-python-major-versions", Members: []manifest.ToolID{"python2", "python3"}},
		{Name: "competing-init-systems", Members: []manifest.ToolID{"systemd", "openrc"}},
	}
}

// DefaultResourceClaims returns the built-in table mapping a tool id
// to the exclusive resource it claims (e.g. a default TCP port).
func DefaultResourceClaims() map[manifest.ToolID]string {
	return map[manifest.ToolID]string{
		"postgres": "port:5432",
		"mysql":    "port:3306",
		"mariadb":  "port:3306",
		"redis":    "port:6379",
	}
}

// Detector analyzes a graph + target set for the five conflict kinds.
type Detector struct {
	CrossCategoryGroups []MutualExclusionGroup
	ResourceClaims      map[manifest.ToolID]string

	mu    sync.Mutex
	cache map[string]*Report
	group singleflight.Group
}

// NewDetector builds a Detector with the built-in conflict tables.
func NewDetector() *Detector {
	return &Detector{
		CrossCategoryGroups: DefaultMutualExclusionGroups(),
		ResourceClaims:      DefaultResourceClaims(),
		cache:               make(map[string]*Report),
	}
}

// cacheKey derives a detection cache key from the sorted targets,
// platform, architecture, and options.
func cacheKey(targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) string {
	sorted := append([]manifest.ToolID{}, targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = string(t)
	}
	return fmt.Sprintf("%s|%s|%s|%v|%v", strings.Join(parts, ","), platform, arch, opts.EnableCaching, opts.ThoroughAnalysis)
}

// Detect analyzes g for conflicts among targets' reachable set. Any
// panic or unexpected internal error is recovered at this boundary and
// converted into a single synthetic detection-failure conflict, so an
// internal failure never escapes as an unhandled panic across the
// core's public boundary.
func (d *Detector) Detect(g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) *Report {
	key := cacheKey(targets, platform, arch, opts)

	if opts.EnableCaching {
		d.mu.Lock()
		if cached, ok := d.cache[key]; ok {
			d.mu.Unlock()
			return cached
		}
		d.mu.Unlock()
	}

	v, _, _ := d.group.Do(key, func() (any, error) {
		report := d.detectSafe(g, conflictsEdges, targets, platform, arch, opts)
		if opts.EnableCaching {
			d.mu.Lock()
			d.cache[key] = report
			d.mu.Unlock()
		}
		return report, nil
	})
	return v.(*Report)
}

func (d *Detector) detectSafe(g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) (report *Report) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("conflict detection panicked", "recover", r)
			report = failureReport(fmt.Sprintf("%v", r))
		}
	}()
	return d.detect(g, conflictsEdges, targets, platform, arch, opts)
}

func failureReport(msg string) *Report {
	c := &Conflict{
		ID:       "detection-failure",
		Type:     KindDetectionFailure,
		Severity: SeverityCritical,
		Blocking: true,
		RootCause: "unexpected internal error during conflict detection: " + msg,
		Metadata: DetectionMetadata{Method: "recover", Confidence: 100},
	}
	return &Report{
		Conflicts:       []*Conflict{c},
		OverallSeverity: SeverityCritical,
		CanProceed:      false,
		Statistics:      ReportStatistics{TotalConflicts: 1, BlockingConflicts: 1, ByKind: map[Kind]int{KindDetectionFailure: 1}},
		Recommendations: []string{"retry detection; if it recurs, file a catalog bug report"},
	}
}

func (d *Detector) detect(g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) *Report {
	reachable := closure(g, targets)

	var conflicts []*Conflict
	conflicts = append(conflicts, d.detectVersionConflicts(g, reachable, opts)...)
	conflicts = append(conflicts, d.detectCircularConflicts(g, reachable)...)
	conflicts = append(conflicts, d.detectPlatformConflicts(g, reachable, platform, arch)...)
	conflicts = append(conflicts, d.detectCrossCategoryConflicts(reachable)...)
	conflicts = append(conflicts, d.detectResourceConflicts(reachable)...)

	return buildReport(conflicts)
}

// closure computes the set of tool ids reachable from targets
// following the graph's already-admitted dependency edges. Conflicts
// edges are never part of the graph's adjacency, so they are excluded
// from reachability by construction.
func closure(g *graph.Graph, targets []manifest.ToolID) map[manifest.ToolID]bool {
	reachable := map[manifest.ToolID]bool{}
	for _, t := range targets {
		if !g.HasNode(t) {
			continue
		}
		ids, err := g.Traverse(t, graph.AlgorithmDFS)
		if err != nil {
			continue
		}
		for _, id := range ids {
			reachable[id] = true
		}
	}
	return reachable
}

func buildReport(conflicts []*Conflict) *Report {
	stats := ReportStatistics{ByKind: map[Kind]int{}}
	overall := SeverityNone
	canProceed := true
	for _, c := range conflicts {
		stats.TotalConflicts++
		stats.ByKind[c.Type]++
		if c.Blocking {
			stats.BlockingConflicts++
			canProceed = false
		}
		if c.Severity.rank() > overall.rank() {
			overall = c.Severity
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return priorityLess(conflicts[i], conflicts[j])
	})
	var recs []string
	for _, c := range conflicts {
		recs = append(recs, c.SuggestedResolutions()...)
	}
	return &Report{
		Conflicts:       conflicts,
		OverallSeverity: overall,
		CanProceed:      canProceed,
		Statistics:      stats,
		Recommendations: recs,
	}
}

// priorityLess orders conflicts for resolution: severity descending,
// then blocking before non-blocking, then id lexicographic.
func priorityLess(a, b *Conflict) bool {
	if a.Severity.rank() != b.Severity.rank() {
		return a.Severity.rank() > b.Severity.rank()
	}
	if a.Blocking != b.Blocking {
		return a.Blocking
	}
	return a.ID < b.ID
}

// --- Version conflicts ---

func (d *Detector) detectVersionConflicts(g *graph.Graph, reachable map[manifest.ToolID]bool, opts Options) []*Conflict {
	var out []*Conflict
	for _, n := range g.AllNodes() {
		if !reachable[n.ID()] {
			continue
		}
		var reqs []VersionRequirement
		var constraints []string
		for _, e := range g.IncomingEdges(n.ID()) {
			if !reachable[e.From] || e.Dependency.Type == manifest.DependencyConflicts {
				continue
			}
			c := semver.ConstraintString(e.Dependency.MinVersion, e.Dependency.MaxVersion, e.Dependency.VersionRange)
			if c == "*" {
				continue
			}
			reqs = append(reqs, VersionRequirement{
				RequiringTool: e.From,
				Constraint:    c,
				Strict:        e.Dependency.Type == manifest.DependencyRequired,
				Platform:      firstPlatform(e.Dependency.Platforms),
			})
			constraints = append(constraints, c)
		}
		if len(constraints) < 2 {
			continue
		}
		if !semver.IntersectionEmpty(constraints, n.Manifest.VersionInfo.AvailableVersions) {
			continue
		}

		strict := false
		for _, r := range reqs {
			if r.Strict {
				strict = true
			}
		}
		compromise := findCompromise(constraints, n.Manifest.VersionInfo.AvailableVersions, opts.ThoroughAnalysis)

		out = append(out, &Conflict{
			ID:                  "version:" + string(n.ID()),
			Type:                KindVersion,
			Severity:            SeverityMajor,
			Blocking:            strict,
			InvolvedTools:       involvedFrom(reqs, n.ID()),
			RootCause:           fmt.Sprintf("incompatible version constraints on %s", n.ID()),
			VersionNode:         n.ID(),
			VersionRequirements: reqs,
			CompromiseVersion:   compromise,
			Metadata:            DetectionMetadata{Method: "constraint-intersection", Confidence: 90},
		})
	}
	return out
}

func firstPlatform(ps []manifest.Platform) manifest.Platform {
	if len(ps) == 0 {
		return ""
	}
	return ps[0]
}

func involvedFrom(reqs []VersionRequirement, self manifest.ToolID) []manifest.ToolID {
	out := []manifest.ToolID{self}
	for _, r := range reqs {
		out = append(out, r.RequiringTool)
	}
	return out
}

// quickScanLimit bounds how many candidate versions the default
// compromise search evaluates per node; thorough analysis lifts it.
const quickScanLimit = 50

// findCompromise searches candidates (sorted ascending) for a version
// satisfying at least compromiseThreshold of constraints. The quick
// pass only scans the newest quickScanLimit candidates, since a tool
// with a long history would otherwise dominate detection time.
func findCompromise(constraints []string, candidates []string, thorough bool) string {
	if !thorough && len(candidates) > quickScanLimit {
		candidates = candidates[len(candidates)-quickScanLimit:]
	}
	need := int(math.Ceil(compromiseThreshold * float64(len(constraints))))
	for _, v := range candidates {
		if semver.SatisfiedCount(v, constraints) >= need {
			return v
		}
	}
	return ""
}

// --- Circular conflicts ---

func (d *Detector) detectCircularConflicts(g *graph.Graph, reachable map[manifest.ToolID]bool) []*Conflict {
	var out []*Conflict
	for _, cycle := range g.DetectCycles() {
		if !cycleReachable(cycle, reachable) {
			continue
		}
		out = append(out, analyzeCycle(g, cycle))
	}
	return out
}

func cycleReachable(cycle []manifest.ToolID, reachable map[manifest.ToolID]bool) bool {
	for _, id := range cycle {
		if reachable[id] {
			return true
		}
	}
	return false
}

func analyzeCycle(g *graph.Graph, cycle []manifest.ToolID) *Conflict {
	var breakPoints []BreakPoint
	required, optional, suggests := 0, 0, 0
	for i := 0; i < len(cycle)-1; i++ {
		from, to := cycle[i], cycle[i+1]
		e, ok := g.GetEdge(from, to)
		if !ok {
			continue
		}
		switch e.Dependency.Type {
		case manifest.DependencyRequired:
			required++
		case manifest.DependencyOptional:
			optional++
		case manifest.DependencySuggests:
			suggests++
		}
		if !e.Breakable() {
			continue
		}
		strategy := "defer"
		impact := 30
		if e.Dependency.Type == manifest.DependencySuggests {
			strategy = "optional"
			impact = 20
		}
		breakPoints = append(breakPoints, BreakPoint{From: from, To: to, Strategy: strategy, Impact: clamp(impact, 0, 100)})
	}

	breakable := len(breakPoints) > 0
	total := required + optional + suggests
	severity := SeverityMinor
	switch {
	case required == total && total > 0:
		severity = SeverityCritical
	case total > 0 && required*2 > total:
		severity = SeverityMajor
	}

	sort.SliceStable(breakPoints, func(i, j int) bool { return breakPoints[i].Impact < breakPoints[j].Impact })

	return &Conflict{
		ID:            "circular:" + canonicalCycleID(cycle),
		Type:          KindCircular,
		Severity:      severity,
		Blocking:      !breakable,
		InvolvedTools: cycle,
		RootCause:     fmt.Sprintf("circular dependency among %v", cycle),
		Cycle:         cycle,
		Breakable:     breakable,
		BreakPoints:   breakPoints,
		Metadata:      DetectionMetadata{Method: "dfs-recursion-stack", Confidence: 100},
	}
}

func canonicalCycleID(cycle []manifest.ToolID) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = string(id)
	}
	return strings.Join(parts, ">")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// compatibilityScore rates how good a substitute candidate is for
// original on (platform, arch), on a 0-100 scale consumed by
// Resolver.resolvePlatform's PlatformPolicy.SubstitutionThreshold gate.
// It rewards a candidate for covering as much of original's declared
// platform/architecture footprint as possible, not merely for
// supporting the single target pair both are already filtered on.
func compatibilityScore(original, candidate manifest.ToolManifest, platform manifest.Platform, arch manifest.Architecture) int {
	score := 0

	if overlap := platformOverlap(original.SystemRequirements.Platforms, candidate.SystemRequirements.Platforms); overlap >= 0 {
		score += overlap
	}
	if overlap := architectureOverlap(original.SystemRequirements.Architectures, candidate.SystemRequirements.Architectures); overlap >= 0 {
		score += overlap
	}
	if candidate.SystemRequirements.SupportsPlatform(platform) {
		score += 10
	}
	if candidate.SystemRequirements.SupportsArchitecture(arch) {
		score += 10
	}
	return clamp(score, 0, 100)
}

// platformOverlap scores (0-50) how much of original's platform set
// candidate also supports; returns -1 if original declares no platforms.
func platformOverlap(original, candidate []manifest.Platform) int {
	if len(original) == 0 {
		return -1
	}
	candidateSet := make(map[manifest.Platform]bool, len(candidate))
	for _, p := range candidate {
		candidateSet[p] = true
	}
	matched := 0
	for _, p := range original {
		if candidateSet[p] {
			matched++
		}
	}
	return int(50 * float64(matched) / float64(len(original)))
}

// architectureOverlap scores (0-30) how much of original's
// architecture set candidate also supports; returns -1 if original
// declares no architectures.
func architectureOverlap(original, candidate []manifest.Architecture) int {
	if len(original) == 0 {
		return -1
	}
	candidateSet := make(map[manifest.Architecture]bool, len(candidate))
	for _, a := range candidate {
		candidateSet[a] = true
	}
	matched := 0
	for _, a := range original {
		if candidateSet[a] {
			matched++
		}
	}
	return int(30 * float64(matched) / float64(len(original)))
}

// --- Platform conflicts ---

func (d *Detector) detectPlatformConflicts(g *graph.Graph, reachable map[manifest.ToolID]bool, platform manifest.Platform, arch manifest.Architecture) []*Conflict {
	var out []*Conflict
	for _, n := range g.AllNodes() {
		if !reachable[n.ID()] {
			continue
		}
		sr := n.Manifest.SystemRequirements
		if sr.SupportsPlatform(platform) && sr.SupportsArchitecture(arch) {
			continue
		}
		var alternatives []manifest.ToolID
		scores := make(map[manifest.ToolID]int)
		for _, other := range g.AllNodes() {
			if other.ID() == n.ID() || other.Manifest.Category != n.Manifest.Category {
				continue
			}
			if other.Manifest.SystemRequirements.SupportsPlatform(platform) && other.Manifest.SystemRequirements.SupportsArchitecture(arch) {
				alternatives = append(alternatives, other.ID())
				scores[other.ID()] = compatibilityScore(n.Manifest, other.Manifest, platform, arch)
			}
		}
		sort.SliceStable(alternatives, func(i, j int) bool {
			if scores[alternatives[i]] != scores[alternatives[j]] {
				return scores[alternatives[i]] > scores[alternatives[j]]
			}
			return alternatives[i] < alternatives[j]
		})
		var workarounds []string
		for _, alt := range alternatives {
			workarounds = append(workarounds, fmt.Sprintf("use %s instead of %s on %s (compatibility score %d)", alt, n.ID(), platform, scores[alt]))
		}
		out = append(out, &Conflict{
			ID:                "platform:" + string(n.ID()),
			Type:              KindPlatform,
			Severity:          SeverityCritical,
			Blocking:          true,
			InvolvedTools:     []manifest.ToolID{n.ID()},
			RootCause:         fmt.Sprintf("%s does not support %s/%s", n.ID(), platform, arch),
			PlatformTool:      n.ID(),
			Alternatives:      alternatives,
			AlternativeScores: scores,
			Workarounds:       workarounds,
			Metadata:          DetectionMetadata{Method: "system-requirements-check", Confidence: 100},
		})
	}
	return out
}

// --- Cross-category conflicts ---

func (d *Detector) detectCrossCategoryConflicts(reachable map[manifest.ToolID]bool) []*Conflict {
	var out []*Conflict
	for _, group := range d.CrossCategoryGroups {
		var present []manifest.ToolID
		for _, m := range group.Members {
			if reachable[m] {
				present = append(present, m)
			}
		}
		if len(present) < 2 {
			continue
		}
		out = append(out, &Conflict{
			ID:                "cross-category:" + group.Name,
			Type:              KindCrossCategory,
			Severity:          SeverityMajor,
			Blocking:          true,
			InvolvedTools:     present,
			RootCause:         "mutually exclusive combination " + group.Name + " present: " + idList(present),
			CrossCategoryName: group.Name,
			Members:           present,
			Metadata:          DetectionMetadata{Method: "mutual-exclusion-table", Confidence: 100},
		})
	}
	return out
}

func idList(ids []manifest.ToolID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// --- Resource conflicts ---

func (d *Detector) detectResourceConflicts(reachable map[manifest.ToolID]bool) []*Conflict {
	byResource := map[string][]manifest.ToolID{}
	for id, resource := range d.ResourceClaims {
		if reachable[id] {
			byResource[resource] = append(byResource[resource], id)
		}
	}
	var out []*Conflict
	var resources []string
	for r := range byResource {
		resources = append(resources, r)
	}
	sort.Strings(resources)
	for _, resource := range resources {
		claimants := byResource[resource]
		if len(claimants) < 2 {
			continue
		}
		sort.Slice(claimants, func(i, j int) bool { return claimants[i] < claimants[j] })
		out = append(out, &Conflict{
			ID:            "resource:" + resource,
			Type:          KindResource,
			Severity:      SeverityMajor,
			Blocking:      true,
			InvolvedTools: claimants,
			RootCause:     fmt.Sprintf("%d tools claim exclusive resource %s: %s", len(claimants), resource, idList(claimants)),
			Resource:      resource,
			Claimants:     claimants,
			Metadata:      DetectionMetadata{Method: "resource-claim-table", Confidence: 100},
		})
	}
	return out
}
