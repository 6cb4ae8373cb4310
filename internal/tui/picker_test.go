package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/comptes/internal/service"
)

func press(p *Picker, keys ...tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = p.Update(k)
	}
	return cmd
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestImportModePickerSelects(t *testing.T) {
	t.Parallel()
	p := ImportModePicker([]string{"No s'ha trobat cap moviment coincident a la base de dades."})

	view := p.View()
	require.Contains(t, view, "Mode d'importació")
	require.Contains(t, view, "No s'ha trobat cap moviment")
	require.Contains(t, view, "▶ Importar des del principi del fitxer")

	cmd := press(p, keyDown, keyDown, keyEnter)
	require.NotNil(t, cmd)
	opt, ok := p.Choice()
	require.True(t, ok)
	require.Equal(t, string(service.ModeFromLastDB), opt.Value)
}

func TestPickerCursorStaysInRange(t *testing.T) {
	t.Parallel()
	p := ConfirmPicker("Importar?", nil)
	press(p, keyUp, keyUp, keyEnter)
	opt, ok := p.Choice()
	require.True(t, ok)
	require.Equal(t, "yes", opt.Value)
}

func TestPickerCancel(t *testing.T) {
	t.Parallel()
	p := ImportModePicker(nil)
	press(p, keyDown, keyEsc)
	_, ok := p.Choice()
	require.False(t, ok)

	q := ImportModePicker(nil)
	press(q, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	_, ok = q.Choice()
	require.False(t, ok)
}
