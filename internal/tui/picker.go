package tui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/comptes/internal/service"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

// Option is one choice offered by a Picker.
type Option struct {
	Label string
	Value string
}

// Picker is a single-choice list. Esc, q and ctrl+c cancel.
type Picker struct {
	title   string
	notes   []string
	options []Option
	cursor  int

	chosen    *Option
	cancelled bool
}

func NewPicker(title string, notes []string, options []Option) *Picker {
	return &Picker{title: title, notes: notes, options: options}
}

func (p *Picker) Init() tea.Cmd { return nil }

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch m.String() {
	case "q", "esc", "ctrl+c":
		p.cancelled = true
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.options)-1 {
			p.cursor++
		}
	case "enter":
		if len(p.options) == 0 {
			p.cancelled = true
			return p, tea.Quit
		}
		opt := p.options[p.cursor]
		p.chosen = &opt
		return p, tea.Quit
	}
	return p, nil
}

func (p *Picker) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.title) + "\n")
	for _, n := range p.notes {
		b.WriteString(warningStyle.Render(n) + "\n")
	}
	if len(p.notes) > 0 {
		b.WriteString("\n")
	}
	for i, opt := range p.options {
		marker := " "
		if i == p.cursor {
			marker = "▶"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, opt.Label)
	}
	b.WriteString(hintStyle.Render("[enter] Select  [esc] Cancel"))
	return b.String()
}

// Choice returns the selected option, or false when the picker was cancelled.
func (p *Picker) Choice() (Option, bool) {
	if p.cancelled || p.chosen == nil {
		return Option{}, false
	}
	return *p.chosen, true
}

// ImportModePicker offers the two ways to import a file with no movement
// in common with the ledger.
func ImportModePicker(warnings []string) *Picker {
	return NewPicker("Mode d'importació", warnings, []Option{
		{Label: "Importar des del principi del fitxer", Value: string(service.ModeFromBeginning)},
		{Label: "Importar des de l'última data a la BD", Value: string(service.ModeFromLastDB)},
	})
}

// ConfirmPicker asks a yes/no question.
func ConfirmPicker(title string, notes []string) *Picker {
	return NewPicker(title, notes, []Option{{Label: "Sí", Value: "yes"}, {Label: "No", Value: "no"}})
}

// Run shows p on the given terminal streams until a choice is made.
func Run(p *Picker, in io.Reader, out io.Writer) (Option, bool, error) {
	if _, err := tea.NewProgram(p, tea.WithInput(in), tea.WithOutput(out)).Run(); err != nil {
		return Option{}, false, fmt.Errorf("run picker: %w", err)
	}
	opt, ok := p.Choice()
	return opt, ok, nil
}

// PickImportMode asks which import mode to use. The empty mode means the
// user cancelled.
func PickImportMode(warnings []string, in io.Reader, out io.Writer) (service.ImportMode, error) {
	opt, ok, err := Run(ImportModePicker(warnings), in, out)
	if err != nil || !ok {
		return service.ModeUnset, err
	}
	return service.ParseImportMode(opt.Value)
}

// Confirm asks a yes/no question and reports a yes.
func Confirm(title string, notes []string, in io.Reader, out io.Writer) (bool, error) {
	opt, ok, err := Run(ConfirmPicker(title, notes), in, out)
	if err != nil || !ok {
		return false, err
	}
	return opt.Value == "yes", nil
}
