package manifest

// InstallationStatus tracks a node's progress through detection and
// planning. The core only ever moves a node between these states; it
// never installs anything itself.
type InstallationStatus string

const (
	StatusNotInstalled InstallationStatus = "not-installed"
	StatusInstalled    InstallationStatus = "installed"
	StatusPlanned      InstallationStatus = "planned"
	StatusFailed       InstallationStatus = "failed"
)

// TraversalState records where a node sits in a graph traversal or
// topological sort, extending the usual white/gray/black DFS marks
// with the resolved/failed states resolution bookkeeping needs.
type TraversalState string

const (
	StateUnvisited TraversalState = "unvisited"
	StateVisiting  TraversalState = "visiting"
	StateVisited   TraversalState = "visited"
	StateResolved  TraversalState = "resolved"
	StateFailed    TraversalState = "failed"
)

// resolutionState is the mutable, single-writer bookkeeping block a
// DependencyGraphNode carries beside its immutable ToolManifest. Each
// build/resolve/plan call runs on a single goroutine, so this block
// needs no synchronization of its own; see internal/graph's package
// doc for the concurrency contract callers must honor.
type resolutionState struct {
	status           InstallationStatus
	traversal        TraversalState
	resolvedVersion  string
	constraints      []string
	topologicalOrder int
	depth            int
	dependentCount   int
}

// DependencyGraphNode wraps a ToolManifest with the derived state the
// Dependency Graph, Conflict Detector, and Installation Planner
// accumulate as they walk the graph.
type DependencyGraphNode struct {
	Manifest ToolManifest
	state    resolutionState
}

// NewNode builds a DependencyGraphNode in its initial not-installed,
// unvisited state.
func NewNode(m ToolManifest) *DependencyGraphNode {
	return &DependencyGraphNode{
		Manifest: m,
		state: resolutionState{
			status:           StatusNotInstalled,
			traversal:        StateUnvisited,
			topologicalOrder: -1,
			depth:            -1,
		},
	}
}

func (n *DependencyGraphNode) ID() ToolID { return n.Manifest.ID }

func (n *DependencyGraphNode) Status() InstallationStatus { return n.state.status }

func (n *DependencyGraphNode) SetStatus(s InstallationStatus) { n.state.status = s }

func (n *DependencyGraphNode) Traversal() TraversalState { return n.state.traversal }

func (n *DependencyGraphNode) SetTraversal(s TraversalState) { n.state.traversal = s }

// ResolvedVersion returns the version chosen for this node, if any
// compromise/pin decision has been made yet.
func (n *DependencyGraphNode) ResolvedVersion() (string, bool) {
	return n.state.resolvedVersion, n.state.resolvedVersion != ""
}

func (n *DependencyGraphNode) SetResolvedVersion(v string) { n.state.resolvedVersion = v }

// AddConstraint accumulates one more version-constraint expression
// placed on this node by an incoming required dependency edge.
func (n *DependencyGraphNode) AddConstraint(c string) {
	if c == "" || c == "*" {
		return
	}
	n.state.constraints = append(n.state.constraints, c)
}

// Constraints returns every version-constraint expression accumulated
// on this node so far.
func (n *DependencyGraphNode) Constraints() []string {
	return n.state.constraints
}

func (n *DependencyGraphNode) TopologicalOrder() int { return n.state.topologicalOrder }

func (n *DependencyGraphNode) SetTopologicalOrder(i int) { n.state.topologicalOrder = i }

func (n *DependencyGraphNode) Depth() int { return n.state.depth }

func (n *DependencyGraphNode) SetDepth(d int) { n.state.depth = d }

func (n *DependencyGraphNode) DependentCount() int { return n.state.dependentCount }

func (n *DependencyGraphNode) IncDependentCount() { n.state.dependentCount++ }

// DecDependentCount lowers the dependent count by one, floored at
// zero, used when an incoming edge is pruned by graph.RemoveNode.
func (n *DependencyGraphNode) DecDependentCount() {
	if n.state.dependentCount > 0 {
		n.state.dependentCount--
	}
}

// PlatformSupport summarizes which of the requested target platforms
// this node's manifest can actually be installed on.
func (n *DependencyGraphNode) PlatformSupport(targets []Platform) map[Platform]bool {
	out := make(map[Platform]bool, len(targets))
	for _, p := range targets {
		out[p] = n.Manifest.SystemRequirements.SupportsPlatform(p)
	}
	return out
}
