package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/comptes/internal/money"
	"github.com/jask/comptes/internal/service"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func renderPreview(w io.Writer, p service.Preview) {
	for _, e := range p.Errors {
		fmt.Fprintln(w, errorStyle.Render("✗ "+e))
	}
	for _, warn := range p.Warnings {
		fmt.Fprintln(w, warningStyle.Render("! "+warn))
	}
	for _, is := range p.Issues {
		fmt.Fprintln(w, mutedStyle.Render("· "+is.String()))
	}

	d := p.Display()
	for i, m := range d.Movements {
		// edits address the oldest-first position
		pos := d.Total - 1 - i
		balance := ""
		if m.Balance != nil {
			balance = money.Format(*m.Balance)
		}
		category := m.CategoryDisplay
		if category == "" {
			category = "-"
		}
		line := fmt.Sprintf("%3d %s | %-40s | %10s | %10s | %s", pos, m.Date, truncate(m.Concept, 40), money.Format(m.Amount), balance, category)
		fmt.Fprintln(w, addedStyle.Render("+ "+line))
	}
	if d.Limited {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("… %d moviments més", d.Total-len(d.Movements))))
	}
	fmt.Fprintf(w, "\n%s %d a importar, %d duplicats, %d llegits (%s)\n",
		titleStyle.Render("Resum:"), p.ToImportCount, p.DuplicatesSkipped, p.Parsed, p.Format)
}

func renderTree(w io.Writer, tree service.Tree) {
	var visit func(i int)
	visit = func(i int) {
		n := tree.Nodes[i]
		label := n.Category.Name
		if n.Depth == 0 {
			label = titleStyle.Render(label)
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", n.Depth), label, mutedStyle.Render(fmt.Sprintf("#%d", n.Category.ID)))
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, r := range tree.Roots {
		visit(r)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
