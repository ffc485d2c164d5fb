package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	critical lipgloss.Style
	warning  lipgloss.Style
	faint    lipgloss.Style
	border   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1),
		cell:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1),
		critical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		faint:    lipgloss.NewStyle().Faint(true),
		border:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// renderTable prints rows under headers. An empty row set prints empty
// instead of a bare header.
func renderTable(w io.Writer, s styles, empty string, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, s.faint.Render(empty))
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}
