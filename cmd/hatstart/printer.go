package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

// planPrinter renders a dependency graph and an InstallationOrder as
// an ASCII tree plus a batch listing: dependencies as parents,
// dependents as children, with per-category coloring.
type planPrinter struct {
	w               io.Writer
	requiredColor   *color.Color
	optionalColor   *color.Color
	suggestsColor   *color.Color
	deferredColor   *color.Color
	categoryColors  map[manifest.Category]*color.Color
}

// newPlanPrinter builds a planPrinter, disabling color globally when
// noColor is set (fatih/color's package-level switch).
func newPlanPrinter(w io.Writer, noColor bool) *planPrinter {
	if noColor {
		color.NoColor = true
	}
	return &planPrinter{
		w:             w,
		requiredColor: color.New(color.FgGreen),
		optionalColor: color.New(color.FgYellow),
		suggestsColor: color.New(color.FgCyan),
		deferredColor: color.New(color.FgMagenta),
		categoryColors: map[manifest.Category]*color.Color{
			manifest.CategoryLanguage: color.New(color.FgBlue),
			manifest.CategoryDevOps:   color.New(color.FgYellow),
			manifest.CategoryDatabase: color.New(color.FgCyan),
		},
	}
}

// PrintTree prints g restricted to the nodes in sequence as an ASCII
// dependency tree rooted at nodes with no outgoing edge among them
// (tools that depend on none of the others); each dependency is printed
// as the parent of its dependents.
func (p *planPrinter) PrintTree(g *graph.Graph, sequence []manifest.ToolID) {
	included := make(map[manifest.ToolID]bool, len(sequence))
	for _, id := range sequence {
		included[id] = true
	}

	children := make(map[manifest.ToolID][]manifest.ToolID)
	hasParent := make(map[manifest.ToolID]bool)
	for _, id := range sequence {
		for _, e := range g.OutgoingEdges(id) {
			if !included[e.To] {
				continue
			}
			// e.From depends on e.To; in the printed tree, e.To is the
			// parent (installs first) and e.From is the child branch.
			children[e.To] = append(children[e.To], e.From)
			hasParent[e.From] = true
		}
	}

	var roots []manifest.ToolID
	for _, id := range sequence {
		if !hasParent[id] {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	for _, root := range roots {
		p.printNode(g, root, "", true, children, true)
	}
}

func (p *planPrinter) printNode(g *graph.Graph, id manifest.ToolID, prefix string, isLast bool, children map[manifest.ToolID][]manifest.ToolID, isRoot bool) {
	connector := ""
	switch {
	case isRoot:
		connector = ""
	case isLast:
		connector = "└── "
	default:
		connector = "├── "
	}

	fmt.Fprintf(p.w, "%s%s%s\n", prefix, connector, p.formatNode(g, id))

	kids := append([]manifest.ToolID{}, children[id]...)
	sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })

	newPrefix := prefix
	switch {
	case isRoot:
		newPrefix = ""
	case isLast:
		newPrefix = prefix + "    "
	default:
		newPrefix = prefix + "│   "
	}

	for i, kid := range kids {
		p.printNode(g, kid, newPrefix, i == len(kids)-1, children, false)
	}
}

func (p *planPrinter) formatNode(g *graph.Graph, id manifest.ToolID) string {
	node, ok := g.GetNode(id)
	if !ok {
		return string(id)
	}
	label := fmt.Sprintf("%s (%s)", node.Manifest.Name, id)
	if c, ok := p.categoryColors[node.Manifest.Category]; ok {
		return c.Sprint(label)
	}
	return label
}

// PrintBatches prints each parallel-installable batch, one per line,
// numbered in installation order.
func (p *planPrinter) PrintBatches(batches [][]manifest.ToolID) {
	fmt.Fprintln(p.w, "\nBatches (installable in parallel):")
	for i, batch := range batches {
		sorted := append([]manifest.ToolID{}, batch...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		fmt.Fprintf(p.w, "  %d: %v\n", i+1, sorted)
	}
}

// PrintSummary prints the order's deferred/circular/estimated-time
// footer.
func (p *planPrinter) PrintSummary(order *plan.Order) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "%d tool(s), %d batch(es), estimated %.0fs\n",
		len(order.InstallationSequence), len(order.Batches), order.EstimatedTimeSeconds)
	if len(order.DeferredDependencies) > 0 {
		p.deferredColor.Fprintf(p.w, "deferred: %v\n", order.DeferredDependencies)
	}
	if len(order.CircularDependencies) > 0 {
		fmt.Fprintf(p.w, "unresolved cycles: %v\n", order.CircularDependencies)
	}
	if len(order.Warnings) > 0 {
		fmt.Fprintf(p.w, "%d warning(s)\n", len(order.Warnings))
	}
	if len(order.Errors) > 0 {
		fmt.Fprintf(p.w, "%d error(s)\n", len(order.Errors))
	}
}
