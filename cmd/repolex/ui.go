package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette for table rendering, grounded on BeadsLog's
// internal/ui/table.go styling (header bold+accent, muted borders).
var (
	colorAccent = lipgloss.Color("39")
	colorMuted  = lipgloss.Color("240")
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	tableBorderStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// newTable builds a rounded-border table with headers, matching
// NewSearchTable's shape but without the teacher's fixed-width TUI
// framing since every repolex table renders once and exits.
func newTable(headers []string, rows [][]string) *table.Table {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		t = t.Row(r...)
	}
	return t
}
