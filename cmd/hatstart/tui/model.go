package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

// entry flattens one row of the browser's cursor-addressable list: a
// batch header row (toolID == "") or a tool row within that batch.
type entry struct {
	batchIndex int
	toolID     manifest.ToolID
	isHeader   bool
}

// BrowserModel is the Bubble Tea model for `hatstart plan --tui`: a
// static, cursor-navigable view over an already-computed plan.Order.
type BrowserModel struct {
	graph   *graph.Graph
	order   *plan.Order
	entries []entry
	cursor  int
	done    bool
	err     error
}

// NewBrowserModel builds a BrowserModel over g and order. g is used to
// look up a selected tool's manifest and outgoing edges for the detail
// panel.
func NewBrowserModel(g *graph.Graph, order *plan.Order) *BrowserModel {
	m := &BrowserModel{graph: g, order: order}
	for i, batch := range order.Batches {
		m.entries = append(m.entries, entry{batchIndex: i, isHeader: true})
		for _, id := range batch {
			m.entries = append(m.entries, entry{batchIndex: i, toolID: id})
		}
	}
	// keep the cursor off header rows
	for m.cursor < len(m.entries) && m.entries[m.cursor].isHeader {
		m.cursor++
	}
	return m
}

func (m *BrowserModel) Init() tea.Cmd { return nil }

func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	}
	return m, nil
}

// moveCursor steps the cursor by delta, skipping header rows so the
// selection always lands on an installable tool.
func (m *BrowserModel) moveCursor(delta int) {
	if len(m.entries) == 0 {
		return
	}
	next := m.cursor
	for {
		next += delta
		if next < 0 || next >= len(m.entries) {
			return
		}
		if !m.entries[next].isHeader {
			m.cursor = next
			return
		}
	}
}

func (m *BrowserModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("hatstart plan — %d tool(s), %d batch(es)", len(m.order.InstallationSequence), len(m.order.Batches))))
	b.WriteString("\n\n")

	for i, e := range m.entries {
		if e.isHeader {
			b.WriteString(batchHeaderStyle.Render(fmt.Sprintf("batch %d", e.batchIndex+1)))
			b.WriteString("\n")
			continue
		}
		cursor := "  "
		label := string(e.toolID)
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
			label = selectedStyle.Render(label)
		}
		b.WriteString(fmt.Sprintf("%s%s\n", cursor, label))
	}

	if len(m.order.DeferredDependencies) > 0 {
		b.WriteString("\n" + deferredStyle.Render(fmt.Sprintf("deferred: %v", m.order.DeferredDependencies)))
	}
	if len(m.order.Errors) > 0 {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%d error(s)", len(m.order.Errors))))
	}

	b.WriteString("\n\n" + m.detailPanel())
	b.WriteString("\n" + helpStyle.Render("↑/↓ or j/k: move • q: quit"))
	return b.String()
}

// detailPanel renders the currently selected tool's manifest name,
// category, and dependency edges inside a bordered box.
func (m *BrowserModel) detailPanel() string {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return ""
	}
	sel := m.entries[m.cursor]
	if sel.isHeader {
		return ""
	}
	node, ok := m.graph.GetNode(sel.toolID)
	if !ok {
		return detailBoxStyle.Render(string(sel.toolID))
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%s (%s)", node.Manifest.Name, node.Manifest.Category))
	if node.Manifest.VersionInfo.Latest != "" {
		lines = append(lines, "version: "+node.Manifest.VersionInfo.Latest)
	}
	for _, e := range m.graph.OutgoingEdges(sel.toolID) {
		style := requiredStyle
		switch e.Dependency.Type {
		case manifest.DependencyOptional:
			style = optionalStyle
		case manifest.DependencySuggests:
			style = suggestsStyle
		}
		lines = append(lines, style.Render(fmt.Sprintf("  %s -> %s", e.Dependency.Type, e.To)))
	}

	return detailBoxStyle.Render(strings.Join(lines, "\n"))
}

// Err returns a non-nil error only if the program failed to run; quit
// via "q" is a normal exit, not an error.
func (m *BrowserModel) Err() error { return m.err }
