package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sibilleb/hatstart/internal/graph"
	"github.com/sibilleb/hatstart/internal/plan"
)

// RunBrowser launches the interactive plan browser against g/order,
// writing to w, and blocks until the user quits. No AltScreen: the
// browser is a one-shot inspection view, not a full-screen app.
func RunBrowser(w io.Writer, g *graph.Graph, order *plan.Order) error {
	if !order.Success || len(order.Batches) == 0 {
		return fmt.Errorf("nothing to browse: plan produced no batches")
	}

	m := NewBrowserModel(g, order)
	p := tea.NewProgram(m, tea.WithOutput(w))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("plan browser failed: %w", err)
	}
	if fm, ok := final.(*BrowserModel); ok && fm.Err() != nil {
		return fm.Err()
	}
	return nil
}
