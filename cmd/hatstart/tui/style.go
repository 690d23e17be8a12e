// Package tui is hatstart's interactive plan browser: a Bubble Tea
// program that lets a user walk the batches of an InstallationOrder
// and inspect each tool's dependencies. The view is static — hatstart
// never executes an install, so there is no live progress to show.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	batchHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	requiredStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	optionalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	suggestsStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	deferredStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	detailBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)
)
