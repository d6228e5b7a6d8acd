package cli

import (
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/projmigrate/pkg/msbuild"
)

func pickerRows() []ProjectRow {
	return []ProjectRow{
		{Name: "Shop.App", Style: msbuild.SDK, References: 1, Packages: 1},
		{Name: "Shop.Core", Style: msbuild.Legacy, Packages: 1},
		{Name: "Shop.Data", Style: msbuild.Legacy, References: 1},
	}
}

func key(s string) tea.Msg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, keys ...string) ProjectPickerModel {
	for _, k := range keys {
		m, _ = m.Update(key(k))
	}
	return m.(ProjectPickerModel)
}

func TestProjectPicker(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{"legacy preselected", []string{"enter"}, []string{"Shop.Core", "Shop.Data"}},
		{"toggle first", []string{" ", "enter"}, []string{"Shop.App", "Shop.Core", "Shop.Data"}},
		{"toggle second", []string{"down", " ", "enter"}, []string{"Shop.Data"}},
		{"select all", []string{"a", "enter"}, []string{"Shop.App", "Shop.Core", "Shop.Data"}},
		{"select none", []string{"a", "a", "enter"}, nil},
		{"cancelled", []string{" ", "esc"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(NewProjectPickerModel(pickerRows()), tt.keys...)
			if got := m.Selected(); !slices.Equal(got, tt.want) {
				t.Errorf("Selected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectPickerCursorBounds(t *testing.T) {
	m := press(NewProjectPickerModel(pickerRows()), "down", "down", "down", "down")
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2", m.Cursor)
	}
	m = press(m, "k", "k", "k", "k")
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0", m.Cursor)
	}
}

func TestProjectPickerView(t *testing.T) {
	view := NewProjectPickerModel(pickerRows()).View()
	for _, want := range []string{"Select Projects", "Shop.Core", "legacy", "2 selected"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
