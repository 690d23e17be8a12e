// Package plan implements the Installation Planner: the component
// that turns a built *graph.Graph into an ordered, batchable
// InstallationOrder, via Kahn's algorithm, a post-order DFS with
// back-edge deferral, or a longest-distance BFS levelizer.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sibilleb/hatstart/internal/conflict"
	hserrors "github.com/sibilleb/hatstart/internal/errors"
	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
)

// Strategy is a closed enum selecting which edges and versions a plan
// considers.
type Strategy string

const (
	StrategyEager        Strategy = "eager"
	StrategyLazy         Strategy = "lazy"
	StrategyConservative Strategy = "conservative"
	StrategyAggressive   Strategy = "aggressive"
	StrategyMinimal      Strategy = "minimal"
	StrategyOptimal      Strategy = "optimal"
)

// Algorithm is a closed enum selecting the ordering algorithm.
type Algorithm string

const (
	AlgorithmTopological Algorithm = "topological"
	AlgorithmDFS         Algorithm = "dfs"
	AlgorithmBFS         Algorithm = "bfs"
)

// Options configures a Plan call.
type Options struct {
	Strategy         Strategy
	Algorithm        Algorithm
	IncludeOptional  bool
	IncludeSuggested bool
	EnableParallel   bool
	EnableCaching    bool
	MaxRetries       int
	MaxExecutionTime time.Duration
}

// DefaultOptions returns the topological/eager defaults with
// parallelism and caching on and three conflict-resolution retries.
func DefaultOptions() Options {
	return Options{
		Strategy: StrategyEager, Algorithm: AlgorithmTopological,
		IncludeOptional: true, IncludeSuggested: true,
		EnableParallel: true, EnableCaching: true,
		MaxRetries: 3, MaxExecutionTime: 30 * time.Second,
	}
}

// edgePolicy derives (includeOptional, includeSuggested, preferLatest,
// preferStable) from a Strategy.
func edgePolicy(s Strategy) (includeOptional, includeSuggested, preferLatest, preferStable bool) {
	switch s {
	case StrategyEager:
		return true, true, false, false
	case StrategyLazy:
		return false, false, false, false
	case StrategyConservative:
		return false, false, false, true
	case StrategyAggressive:
		return true, false, true, false
	case StrategyMinimal:
		return false, false, false, false
	case StrategyOptimal:
		return true, false, false, false
	default:
		return false, false, false, false
	}
}

// Order is the Installation Planner's output.
type Order struct {
	InstallationSequence []manifest.ToolID
	Batches              [][]manifest.ToolID
	DeferredDependencies []manifest.ToolID
	CircularDependencies [][]manifest.ToolID
	EstimatedTimeSeconds float64
	Success              bool
	Warnings             hserrors.Diagnostics
	Errors               hserrors.Diagnostics
}

// Planner produces InstallationOrders from a graph and target set.
type Planner struct {
	mu    sync.Mutex
	cache map[string]*Order
	group singleflight.Group
}

// NewPlanner builds an empty Planner.
func NewPlanner() *Planner {
	return &Planner{cache: make(map[string]*Order)}
}

func cacheKey(targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) string {
	sorted := append([]manifest.ToolID{}, targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprintf("%v|%s|%s|%s|%s|%v|%v|%v", sorted, platform, arch, opts.Strategy, opts.Algorithm,
		opts.IncludeOptional, opts.IncludeSuggested, opts.EnableParallel)
}

// Plan computes an InstallationOrder for targets over g.
func (p *Planner) Plan(ctx context.Context, g *graph.Graph, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts Options) *Order {
	key := cacheKey(targets, platform, arch, opts)
	if opts.EnableCaching {
		p.mu.Lock()
		if cached, ok := p.cache[key]; ok {
			p.mu.Unlock()
			return cached
		}
		p.mu.Unlock()
	}

	v, _, _ := p.group.Do(key, func() (any, error) {
		order := p.plan(ctx, g, targets, opts)
		if opts.EnableCaching && order.Success {
			p.mu.Lock()
			p.cache[key] = order
			p.mu.Unlock()
		}
		return order, nil
	})
	return v.(*Order)
}

func deadlineExceeded(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && time.Now().After(deadline)
}

func (p *Planner) plan(ctx context.Context, g *graph.Graph, targets []manifest.ToolID, opts Options) *Order {
	start := time.Now()
	var deadline time.Time
	if opts.MaxExecutionTime > 0 {
		deadline = start.Add(opts.MaxExecutionTime)
	}

	includeOptional, includeSuggested, preferLatest, preferStable := edgePolicy(opts.Strategy)
	// Both the strategy and the explicit opts flag must admit an edge
	// kind: eager planning with IncludeOptional=false still drops
	// optional edges, which is what makes the first progressive-
	// restriction retry (drop optional+suggested) effective.
	if !opts.IncludeOptional {
		includeOptional = false
	}
	if !opts.IncludeSuggested {
		includeSuggested = false
	}

	allowed := func(t manifest.DependencyType) bool {
		switch t {
		case manifest.DependencyRequired:
			return true
		case manifest.DependencyOptional:
			return includeOptional
		case manifest.DependencySuggests:
			return includeSuggested
		default:
			return false
		}
	}
	// admitEdge is the ordering-constraint filter: an edge the resolver
	// (or an earlier planning pass) has deferred or downgraded-out no
	// longer constrains install order. Reachability deliberately keeps
	// deferred edges — a deferred dependency is still installed, just
	// after its dependent.
	admitEdge := func(e *manifest.DependencyGraphEdge) bool {
		if !allowed(e.Dependency.Type) {
			return false
		}
		switch e.Resolution() {
		case manifest.EdgeDeferred, manifest.EdgeUnsatisfied:
			return false
		}
		return true
	}

	nodes := closureFiltered(g, targets, allowed)
	if deadlineExceeded(ctx, deadline) {
		return timeoutOrder()
	}

	pinVersions(g, nodes, preferLatest, preferStable)

	var order []manifest.ToolID
	var deferred []manifest.ToolID
	var circularGroups [][]manifest.ToolID
	var err error

	switch opts.Algorithm {
	case AlgorithmDFS:
		order, deferred, circularGroups = planDFS(g, targets, nodes, admitEdge)
	case AlgorithmBFS:
		order = planBFS(g, nodes, admitEdge)
	default:
		order, deferred, err = planTopological(g, nodes, admitEdge)
	}

	if deadlineExceeded(ctx, deadline) {
		return timeoutOrder()
	}

	blockingCycle := opts.Algorithm == AlgorithmDFS && len(circularGroups) > 0 && len(order) == 0
	if err != nil || blockingCycle {
		msg := "circular dependency among planned nodes"
		if err != nil {
			msg = err.Error()
		}
		if len(circularGroups) == 0 {
			circularGroups = cyclesWithin(g, nodes)
		}
		return &Order{
			Success:              false,
			CircularDependencies: circularGroups,
			Errors:               hserrors.Diagnostics{hserrors.NewError(hserrors.CodeCircularDependencies, "", msg)},
		}
	}

	var batches [][]manifest.ToolID
	if opts.EnableParallel {
		batches = batchOrder(g, order)
	} else {
		for _, id := range order {
			batches = append(batches, []manifest.ToolID{id})
		}
	}

	slog.Debug("installation plan computed",
		"targets", len(targets), "nodes", len(order), "batches", len(batches), "strategy", opts.Strategy, "algorithm", opts.Algorithm)

	return &Order{
		InstallationSequence: order,
		Batches:              batches,
		DeferredDependencies: deferred,
		CircularDependencies: circularGroups,
		EstimatedTimeSeconds: float64(len(order)),
		Success:              true,
	}
}

func timeoutOrder() *Order {
	return &Order{
		Success: false,
		Errors:  hserrors.Diagnostics{hserrors.NewError(hserrors.CodePlanTimeout, "", "planning exceeded the max execution time")},
	}
}

// closureFiltered computes the reachable node set from targets
// following only edges allowed by the allowed predicate. Edges a
// resolver downgraded out entirely (EdgeUnsatisfied) are excluded;
// deferred edges still contribute their target, since a deferral only
// reorders the install, it never drops the dependency.
func closureFiltered(g *graph.Graph, targets []manifest.ToolID, allowed func(manifest.DependencyType) bool) map[manifest.ToolID]bool {
	visited := map[manifest.ToolID]bool{}
	var stack []manifest.ToolID
	for _, t := range targets {
		if g.HasNode(t) && !visited[t] {
			visited[t] = true
			stack = append(stack, t)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.OutgoingEdges(cur) {
			if !allowed(e.Dependency.Type) || e.Resolution() == manifest.EdgeUnsatisfied {
				continue
			}
			if !visited[e.To] {
				visited[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	return visited
}

// cyclesWithin reports every detected cycle whose members all lie in
// the planned node set, for the unresolved-cycles field of a failed
// plan.
func cyclesWithin(g *graph.Graph, nodes map[manifest.ToolID]bool) [][]manifest.ToolID {
	var out [][]manifest.ToolID
	for _, cycle := range g.DetectCycles() {
		inside := true
		for _, id := range cycle {
			if !nodes[id] {
				inside = false
				break
			}
		}
		if inside {
			out = append(out, cycle)
		}
	}
	return out
}

func pinVersions(g *graph.Graph, nodes map[manifest.ToolID]bool, preferLatest, preferStable bool) {
	for id := range nodes {
		n, ok := g.GetNode(id)
		if !ok {
			continue
		}
		if _, pinned := n.ResolvedVersion(); pinned {
			continue
		}
		vi := n.Manifest.VersionInfo
		switch {
		case preferStable && vi.Stable != "":
			n.SetResolvedVersion(vi.Stable)
		case preferLatest && len(vi.AvailableVersions) > 0:
			n.SetResolvedVersion(vi.AvailableVersions[len(vi.AvailableVersions)-1])
		case vi.Recommended != "":
			n.SetResolvedVersion(vi.Recommended)
		case vi.Stable != "":
			n.SetResolvedVersion(vi.Stable)
		}
	}
}

// planTopological orders nodes via Kahn's algorithm restricted to the
// given node set and edge-admission predicate, generalizing
// graph.Graph.TopologicalSort to a strategy-filtered subgraph. When the
// queue drains with nodes left over, the leftover set is a cyclic core:
// the lowest (from, to) breakable edge in it is deferred and the sort
// retried, so a breakable cycle degrades to a deferral instead of a
// planning failure. Only a cycle made entirely of required edges fails.
func planTopological(g *graph.Graph, nodes map[manifest.ToolID]bool, admit func(*manifest.DependencyGraphEdge) bool) (order, deferred []manifest.ToolID, err error) {
	for {
		order = kahnOrder(g, nodes, admit)
		if len(order) == len(nodes) {
			return order, deferred, nil
		}
		e := breakableCycleEdge(g, nodes, admit, order)
		if e == nil {
			return nil, deferred, fmt.Errorf("circular dependency among planned nodes")
		}
		e.SetResolution(manifest.EdgeDeferred)
		deferred = append(deferred, e.To)
	}
}

func kahnOrder(g *graph.Graph, nodes map[manifest.ToolID]bool, admit func(*manifest.DependencyGraphEdge) bool) []manifest.ToolID {
	inDegree := map[manifest.ToolID]int{}
	for id := range nodes {
		inDegree[id] = 0
	}
	reverse := map[manifest.ToolID][]manifest.ToolID{}
	for id := range nodes {
		for _, e := range g.OutgoingEdges(id) {
			if !nodes[e.To] || !admit(e) {
				continue
			}
			inDegree[id]++
			reverse[e.To] = append(reverse[e.To], id)
		}
	}

	var queue []manifest.ToolID
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sortByPriority(g, queue)

	var order []manifest.ToolID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		var next []manifest.ToolID
		for _, dependent := range reverse[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sortByPriority(g, next)
		queue = append(queue, next...)
	}
	return order
}

// breakableCycleEdge picks the deterministically-first (by from, then
// to) breakable, admitted edge between two nodes of the cyclic core —
// the nodes Kahn's queue could not place.
func breakableCycleEdge(g *graph.Graph, nodes map[manifest.ToolID]bool, admit func(*manifest.DependencyGraphEdge) bool, placedOrder []manifest.ToolID) *manifest.DependencyGraphEdge {
	placed := make(map[manifest.ToolID]bool, len(placedOrder))
	for _, id := range placedOrder {
		placed[id] = true
	}
	var best *manifest.DependencyGraphEdge
	for id := range nodes {
		if placed[id] {
			continue
		}
		for _, e := range g.OutgoingEdges(id) {
			if !nodes[e.To] || placed[e.To] || !admit(e) || !e.Breakable() {
				continue
			}
			if best == nil || e.From < best.From || (e.From == best.From && e.To < best.To) {
				best = e
			}
		}
	}
	return best
}

func sortByPriority(g *graph.Graph, ids []manifest.ToolID) {
	sort.SliceStable(ids, func(i, j int) bool {
		ni, _ := g.GetNode(ids[i])
		nj, _ := g.GetNode(ids[j])
		pi, pj := ni.Manifest.Category.Priority(), nj.Manifest.Category.Priority()
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
}

// planDFS performs a post-order DFS started from every planned node in
// category-priority then id order, deferring
// breakable back-edges and failing (returning an empty order plus the
// offending cycle) on a required back-edge.
func planDFS(g *graph.Graph, targets []manifest.ToolID, nodes map[manifest.ToolID]bool, admit func(*manifest.DependencyGraphEdge) bool) (order, deferred []manifest.ToolID, circular [][]manifest.ToolID) {
	const (
		white = iota
		gray
		black
	)
	color := map[manifest.ToolID]int{}
	visited := map[manifest.ToolID]bool{}

	var visit func(id manifest.ToolID) bool
	visit = func(id manifest.ToolID) bool {
		color[id] = gray
		for _, e := range g.OutgoingEdges(id) {
			if !nodes[e.To] || !admit(e) {
				continue
			}
			switch color[e.To] {
			case gray:
				if e.Breakable() {
					deferred = append(deferred, e.To)
					e.SetResolution(manifest.EdgeDeferred)
					continue
				}
				circular = append(circular, []manifest.ToolID{id, e.To})
				return false
			case white:
				if !visit(e.To) {
					return false
				}
			}
		}
		color[id] = black
		if !visited[id] {
			visited[id] = true
			order = append(order, id)
		}
		return true
	}

	var sortedTargets []manifest.ToolID
	for id := range nodes {
		sortedTargets = append(sortedTargets, id)
	}
	sortByPriority(g, sortedTargets)

	for _, id := range sortedTargets {
		if color[id] == white {
			if !visit(id) {
				return nil, nil, circular
			}
		}
	}
	return order, deferred, circular
}

// planBFS levelizes nodes by longest distance from the target set,
// installing the deepest (longest-distance) dependencies first.
func planBFS(g *graph.Graph, nodes map[manifest.ToolID]bool, admit func(*manifest.DependencyGraphEdge) bool) []manifest.ToolID {
	dist := map[manifest.ToolID]int{}
	for id := range nodes {
		dist[id] = 0
	}
	changed := true
	for pass := 0; pass < len(nodes)+1 && changed; pass++ {
		changed = false
		for id := range nodes {
			for _, e := range g.OutgoingEdges(id) {
				if !nodes[e.To] || !admit(e) {
					continue
				}
				if dist[e.To] < dist[id]+1 {
					dist[e.To] = dist[id] + 1
					changed = true
				}
			}
		}
	}

	var ids []manifest.ToolID
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if dist[ids[i]] != dist[ids[j]] {
			return dist[ids[i]] > dist[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// batchOrder groups consecutive sequence members into the largest
// batches such that no pair within a batch has a directed path
// between them in g. Within a batch, members are kept in
// lexicographic order.
func batchOrder(g *graph.Graph, order []manifest.ToolID) [][]manifest.ToolID {
	var batches [][]manifest.ToolID
	i := 0
	for i < len(order) {
		batch := []manifest.ToolID{order[i]}
		j := i + 1
		for j < len(order) {
			candidate := order[j]
			conflictsWithBatch := false
			for _, member := range batch {
				if g.HasPath(member, candidate) || g.HasPath(candidate, member) {
					conflictsWithBatch = true
					break
				}
			}
			if conflictsWithBatch {
				break
			}
			batch = append(batch, candidate)
			j++
		}
		sort.Slice(batch, func(a, b int) bool { return batch[a] < batch[b] })
		batches = append(batches, batch)
		i = j
	}
	return batches
}

// PlanWithConflictResolution implements the compound operation:
// detect, resolve if blocking, re-plan, with up to opts.MaxRetries
// progressively more restrictive retries.
func (p *Planner) PlanWithConflictResolution(ctx context.Context, g *graph.Graph, conflictsEdges map[manifest.ToolID][]manifest.ToolDependency, targets []manifest.ToolID, policy conflict.Policy, platform manifest.Platform, arch manifest.Architecture, opts Options) (*Order, *conflict.Report) {
	detector := conflict.NewDetector()
	resolver := conflict.NewResolver()

	attemptOpts := opts
	var lastReport *conflict.Report

	for attempt := 0; attempt <= maxRetries(opts); attempt++ {
		// Detection caching stays off here: the resolver mutates the
		// working graph between attempts, and the detector's cache key
		// only covers inputs that mutation does not change.
		report := detector.Detect(g, conflictsEdges, targets, platform, arch, conflict.Options{})
		lastReport = report

		if !report.CanProceed {
			result := resolver.Resolve(g, report, targets, policy, nil)
			if len(result.UnresolvedConflicts) > 0 {
				attemptOpts = restrict(attemptOpts, attempt)
				continue
			}
		}

		order := p.Plan(ctx, g, targets, platform, arch, attemptOpts)
		if order.Success {
			return order, lastReport
		}
		attemptOpts = restrict(attemptOpts, attempt)
	}

	return &Order{
		Success: false,
		Errors:  hserrors.Diagnostics{hserrors.NewError(hserrors.CodeResolutionExhausted, "", "max retries reached with residual conflicts")},
	}, lastReport
}

func maxRetries(opts Options) int {
	if opts.MaxRetries <= 0 {
		return 3
	}
	return opts.MaxRetries
}

// restrict implements the three-step progressive-restriction retry
// policy: (1) drop optional+suggested, (2) switch to lazy, (3) disable
// parallelism.
func restrict(opts Options, attempt int) Options {
	switch attempt {
	case 0:
		opts.IncludeOptional = false
		opts.IncludeSuggested = false
	case 1:
		opts.Strategy = StrategyLazy
	default:
		opts.EnableParallel = false
	}
	return opts
}
