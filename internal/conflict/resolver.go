package conflict

import (
	"fmt"
	"sort"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/semver"
)

// RiskTolerance is a closed enum for the resolver's automatic-action
// appetite.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// PinningStrategy is a closed enum for version-conflict remediation.
type PinningStrategy string

const (
	PinExact PinningStrategy = "exact"
	PinMajor PinningStrategy = "major"
	PinMinor PinningStrategy = "minor"
	PinPatch PinningStrategy = "patch"
)

// ActionKind is the closed taxonomy of remediation actions the
// Resolver can take.
type ActionKind string

const (
	ActionSubstitute ActionKind = "substitute"
	ActionDefer      ActionKind = "defer"
	ActionUpgrade    ActionKind = "upgrade"
	ActionDowngrade  ActionKind = "downgrade"
	ActionRemove     ActionKind = "remove"
	ActionConfigure  ActionKind = "configure"
)

// Reversible reports whether undoing this action kind is supported.
// remove is the taxonomy's one irreversible action.
func (a ActionKind) Reversible() bool { return a != ActionRemove }

// AutomaticPolicy configures the resolver's automated remediation.
type AutomaticPolicy struct {
	Enabled        bool
	MaxSteps       int
	AllowedActions map[ActionKind]bool
	RiskTolerance  RiskTolerance
}

// VersioningPolicy configures version-conflict remediation.
type VersioningPolicy struct {
	PreferLatest       bool
	AllowMajorUpgrades bool
	AllowDowngrades    bool
	PinningStrategy    PinningStrategy
}

// PlatformPolicy configures platform-conflict remediation.
type PlatformPolicy struct {
	UseAlternatives  bool
	AllowWorkarounds bool
	PreferNative     bool
	// SubstitutionThreshold is the minimum compatibility score (0-100)
	// an alternative must meet before it is substituted; default 70.
	SubstitutionThreshold int
}

// InteractionPolicy configures user-confirmation behavior.
type InteractionPolicy struct {
	ConfirmMajorChanges bool
	VerboseExplanations bool
	AllowOverrides      bool
}

// Policy is the full ResolutionPolicy config record.
type Policy struct {
	Automatic   AutomaticPolicy
	Versioning  VersioningPolicy
	Platform    PlatformPolicy
	Interaction InteractionPolicy
}

// DefaultPolicy returns a conservative, fully-automatic default
// policy. Retry counts live on the Planner's options, not here.
func DefaultPolicy() Policy {
	return Policy{
		Automatic: AutomaticPolicy{
			Enabled:  true,
			MaxSteps: 50,
			AllowedActions: map[ActionKind]bool{
				ActionSubstitute: true, ActionDefer: true, ActionUpgrade: true,
				ActionDowngrade: true, ActionRemove: true, ActionConfigure: true,
			},
			RiskTolerance: RiskConservative,
		},
		Versioning: VersioningPolicy{PreferLatest: true, PinningStrategy: PinExact},
		Platform:   PlatformPolicy{UseAlternatives: true, AllowWorkarounds: true, SubstitutionThreshold: 70},
		Interaction: InteractionPolicy{ConfirmMajorChanges: false},
	}
}

// ConfirmOption is the closed set of answers a UserPrompt can give to
// a confirmation request.
type ConfirmOption string

const (
	ConfirmYes  ConfirmOption = "yes"
	ConfirmNo   ConfirmOption = "no"
	ConfirmSkip ConfirmOption = "skip"
)

// UserPrompt is the abstract confirmation callback the Resolver
// invokes for major actions when Interaction.ConfirmMajorChanges is
// set. A nil UserPrompt means the resolver falls back to the policy's
// RiskTolerance default (aggressive → Yes, conservative or moderate →
// Skip).
type UserPrompt interface {
	RequestConfirmation(message string, options []ConfirmOption) ConfirmOption
}

// StepResult is the outcome of one resolution step.
type StepResult string

const (
	StepSuccess           StepResult = "success"
	StepFailed            StepResult = "failed"
	StepSkipped           StepResult = "skipped"
	StepRequiresUserInput StepResult = "requires-user-input"
)

// Step records one executed resolution action.
type Step struct {
	ConflictID    string
	Action        ActionKind
	Result        StepResult
	AffectedTools []manifest.ToolID
	Detail        string
}

// UndoEntry lets a caller reverse a reversible step.
type UndoEntry struct {
	Step Step
	Undo func()
}

// Summary describes the net effect of a resolution run.
type Summary struct {
	StepsExecuted  int
	StepsSucceeded int
	Reversible     bool
	SideEffects    []string
}

// Result is the Resolver's output.
type Result struct {
	Graph               *graph.Graph
	Steps               []Step
	UnresolvedConflicts []*Conflict
	Summary             Summary
	undoLog             []UndoEntry
}

// Undo reverses every reversible step executed, in LIFO order.
func (r *Result) Undo() {
	for i := len(r.undoLog) - 1; i >= 0; i-- {
		if r.undoLog[i].Undo != nil {
			r.undoLog[i].Undo()
		}
	}
}

// Resolver applies policy-driven remediation to a Report's conflicts.
type Resolver struct{}

// NewResolver builds a Resolver. The type exists (rather than a bare
// function) to leave room for resolver-local caches later without an
// API break.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve executes up to policy.Automatic.MaxSteps remediation steps
// against the conflicts in report. Actions only touch derived state on
// g (version pins, edge resolutions, node statuses), never node/edge
// identity; callers that need the canonical graph preserved pass a
// working copy and keep the original untouched.
func (r *Resolver) Resolve(g *graph.Graph, report *Report, targets []manifest.ToolID, policy Policy, prompt UserPrompt) *Result {
	working := g

	pending := append([]*Conflict{}, report.Conflicts...)
	sort.SliceStable(pending, func(i, j int) bool { return priorityLess(pending[i], pending[j]) })

	result := &Result{Graph: working}
	steps := 0
	for len(pending) > 0 && steps < policy.Automatic.MaxSteps {
		c := pending[0]
		pending = pending[1:]
		steps++

		step, resolved, undo := r.resolveOne(working, c, policy, prompt)
		result.Steps = append(result.Steps, step)
		if step.Result == StepSuccess {
			result.Summary.StepsSucceeded++
			if step.Action.Reversible() {
				result.undoLog = append(result.undoLog, UndoEntry{Step: step, Undo: undo})
			}
		}
		if !resolved {
			result.UnresolvedConflicts = append(result.UnresolvedConflicts, c)
		}
	}
	// any conflicts never reached because MaxSteps was exhausted
	result.UnresolvedConflicts = append(result.UnresolvedConflicts, pending...)

	result.Summary.StepsExecuted = steps
	result.Summary.Reversible = allReversible(result.Steps)
	return result
}

func allReversible(steps []Step) bool {
	for _, s := range steps {
		if !s.Action.Reversible() {
			return false
		}
	}
	return true
}

// resolveOne dispatches to a kind-specific strategy and reports
// whether the conflict was resolved (vs. surfaced unresolved), plus an
// undo closure for a successful, reversible step (nil otherwise).
func (r *Resolver) resolveOne(g *graph.Graph, c *Conflict, policy Policy, prompt UserPrompt) (Step, bool, func()) {
	switch c.Type {
	case KindVersion:
		return r.resolveVersion(g, c, policy)
	case KindCircular:
		return r.resolveCircular(g, c, policy)
	case KindPlatform:
		return r.resolvePlatform(g, c, policy, prompt)
	case KindCrossCategory, KindResource:
		return r.resolveOverride(g, c, policy, prompt)
	default:
		return Step{ConflictID: c.ID, Result: StepSkipped, Detail: "no strategy for " + string(c.Type)}, false, nil
	}
}

func (r *Resolver) resolveVersion(g *graph.Graph, c *Conflict, policy Policy) (Step, bool, func()) {
	n, ok := g.GetNode(c.VersionNode)
	if !ok {
		return Step{ConflictID: c.ID, Result: StepFailed, Detail: "node not found"}, false, nil
	}
	constraints := make([]string, len(c.VersionRequirements))
	for i, req := range c.VersionRequirements {
		constraints[i] = req.Constraint
	}
	candidates := semver.SortCandidatesForResolution(n.Manifest.VersionInfo.AvailableVersions)

	var chosen string
	var found bool
	if policy.Versioning.PreferLatest {
		chosen, found = semver.LastSatisfying(candidates, constraints)
	}
	if !found {
		chosen, found = semver.FirstSatisfying(candidates, constraints)
	}
	if !found && n.Manifest.VersionInfo.Recommended != "" && semver.SatisfiesAll(n.Manifest.VersionInfo.Recommended, constraints) {
		chosen, found = n.Manifest.VersionInfo.Recommended, true
	}
	if !found && n.Manifest.VersionInfo.Stable != "" && semver.SatisfiesAll(n.Manifest.VersionInfo.Stable, constraints) {
		chosen, found = n.Manifest.VersionInfo.Stable, true
	}
	detail := "pinned to "
	suffix := ""
	if !found && c.CompromiseVersion != "" {
		// No version satisfies every constraint, but the detector found
		// one clearing the compromise threshold; pin that and surface
		// which constraints it leaves unmet via the step detail.
		chosen, found = c.CompromiseVersion, true
		detail = "pinned to compromise version "
		var unmet []string
		for _, req := range constraints {
			if !semver.SatisfiesAll(chosen, []string{req}) {
				unmet = append(unmet, req)
			}
		}
		suffix = fmt.Sprintf(" (unmet constraints: %q)", unmet)
	}
	if !found {
		return Step{ConflictID: c.ID, Action: ActionUpgrade, Result: StepFailed, AffectedTools: []manifest.ToolID{c.VersionNode},
			Detail: "no candidate version satisfies all constraints"}, false, nil
	}
	previous, _ := n.ResolvedVersion()
	n.SetResolvedVersion(chosen)
	undo := func() { n.SetResolvedVersion(previous) }
	return Step{ConflictID: c.ID, Action: ActionUpgrade, Result: StepSuccess, AffectedTools: []manifest.ToolID{c.VersionNode},
		Detail: detail + chosen + suffix}, true, undo
}

func (r *Resolver) resolveCircular(g *graph.Graph, c *Conflict, policy Policy) (Step, bool, func()) {
	if !c.Breakable || len(c.BreakPoints) == 0 {
		return Step{ConflictID: c.ID, Result: StepFailed, AffectedTools: c.Cycle, Detail: "no break-point available"}, false, nil
	}
	bp := c.BreakPoints[0] // pre-sorted ascending by impact in analyzeCycle
	e, ok := g.GetEdge(bp.From, bp.To)
	if !ok {
		return Step{ConflictID: c.ID, Result: StepFailed, Detail: "break-point edge vanished"}, false, nil
	}
	previous := e.Resolution()
	verb := "deferred "
	if bp.Strategy == "optional" {
		// A suggests edge is downgraded out entirely rather than
		// reordered: the target no longer appears in the plan at all.
		e.SetResolution(manifest.EdgeUnsatisfied)
		verb = "downgraded "
	} else {
		e.SetResolution(manifest.EdgeDeferred)
	}
	undo := func() { e.SetResolution(previous) }
	return Step{ConflictID: c.ID, Action: ActionDefer, Result: StepSuccess, AffectedTools: []manifest.ToolID{bp.From, bp.To},
		Detail: verb + string(bp.From) + "->" + string(bp.To) + " via strategy " + bp.Strategy}, true, undo
}

func (r *Resolver) resolvePlatform(g *graph.Graph, c *Conflict, policy Policy, prompt UserPrompt) (Step, bool, func()) {
	if !policy.Platform.UseAlternatives || len(c.Alternatives) == 0 {
		return Step{ConflictID: c.ID, Result: StepFailed, AffectedTools: []manifest.ToolID{c.PlatformTool}, Detail: "no alternative available"}, false, nil
	}
	alt, score, ok := bestAlternative(c, policy.Platform.SubstitutionThreshold)
	if !ok {
		return Step{ConflictID: c.ID, Result: StepFailed, AffectedTools: []manifest.ToolID{c.PlatformTool},
			Detail: fmt.Sprintf("no alternative meets compatibility threshold %d", policy.Platform.SubstitutionThreshold)}, false, nil
	}
	if policy.Interaction.ConfirmMajorChanges {
		switch confirm(prompt, policy, "substitute "+string(c.PlatformTool)+" with "+string(alt)+"?") {
		case ConfirmYes:
		case ConfirmSkip:
			return Step{ConflictID: c.ID, Action: ActionSubstitute, Result: StepSkipped}, false, nil
		default:
			return Step{ConflictID: c.ID, Action: ActionSubstitute, Result: StepFailed, Detail: "declined"}, false, nil
		}
	}
	return Step{ConflictID: c.ID, Action: ActionSubstitute, Result: StepSuccess,
		AffectedTools: []manifest.ToolID{c.PlatformTool, alt},
		Detail:        fmt.Sprintf("substituted %s with %s (compatibility score %d)", c.PlatformTool, alt, score)}, true, nil
}

// bestAlternative returns the highest-scoring alternative in
// c.Alternatives whose AlternativeScores entry meets threshold.
// Alternatives is already sorted descending by score, so the first
// entry clearing the bar is the best one; ok is false when none do.
func bestAlternative(c *Conflict, threshold int) (manifest.ToolID, int, bool) {
	for _, alt := range c.Alternatives {
		score := c.AlternativeScores[alt]
		if score >= threshold {
			return alt, score, true
		}
	}
	return "", 0, false
}

func (r *Resolver) resolveOverride(g *graph.Graph, c *Conflict, policy Policy, prompt UserPrompt) (Step, bool, func()) {
	if !policy.Interaction.AllowOverrides || len(c.InvolvedTools) == 0 {
		return Step{ConflictID: c.ID, Result: StepFailed, AffectedTools: c.InvolvedTools, Detail: "overrides disabled; manual resolution required"}, false, nil
	}
	victim := lowestPriorityMember(g, c.InvolvedTools)
	if policy.Interaction.ConfirmMajorChanges {
		switch confirm(prompt, policy, "remove "+string(victim)+" to resolve "+c.ID+"?") {
		case ConfirmYes:
		case ConfirmSkip:
			return Step{ConflictID: c.ID, Action: ActionRemove, Result: StepSkipped}, false, nil
		default:
			return Step{ConflictID: c.ID, Action: ActionRemove, Result: StepFailed, Detail: "declined"}, false, nil
		}
	}
	if n, ok := g.GetNode(victim); ok {
		n.SetStatus(manifest.StatusFailed)
	}
	// remove is irreversible (ActionKind.Reversible()), so Resolve never
	// stores an undo entry for this step regardless of the nil here.
	return Step{ConflictID: c.ID, Action: ActionRemove, Result: StepSuccess, AffectedTools: []manifest.ToolID{victim},
		Detail: "removed lower-priority member " + string(victim)}, true, nil
}

func lowestPriorityMember(g *graph.Graph, ids []manifest.ToolID) manifest.ToolID {
	worst := ids[0]
	worstPriority := -1
	for _, id := range ids {
		if n, ok := g.GetNode(id); ok {
			p := n.Manifest.Category.Priority()
			if p > worstPriority {
				worstPriority = p
				worst = id
			}
		}
	}
	return worst
}

// confirm resolves a confirmation request through prompt, falling back
// to the policy's risk tolerance when prompt is nil: an aggressive
// policy proceeds, anything tamer skips the step rather than failing
// it, since no user actually said no.
func confirm(prompt UserPrompt, policy Policy, message string) ConfirmOption {
	if prompt == nil {
		if policy.Automatic.RiskTolerance == RiskAggressive {
			return ConfirmYes
		}
		return ConfirmSkip
	}
	return prompt.RequestConfirmation(message, []ConfirmOption{ConfirmYes, ConfirmNo, ConfirmSkip})
}
