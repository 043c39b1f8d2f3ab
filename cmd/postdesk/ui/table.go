package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows under a header line.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// View returns the rendered table, or "" when there are no rows.
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	// Width includes the one-cell padding on each side.
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	header := styles.Bold.Padding(0, 1)
	cell := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("|")

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title) + "\n")
	}
	for i, h := range t.Headers {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(header.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n" + styles.Muted.Render(strings.Repeat("-", total)) + "\n")
	for _, row := range t.Rows {
		for i := range widths {
			if i > 0 {
				sb.WriteString(sep)
			}
			var v string
			if i < len(row) {
				v = row[i]
			}
			sb.WriteString(cell.Width(widths[i]).Render(v))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
