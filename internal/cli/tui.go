package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/projmigrate/pkg/msbuild"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// ProjectPickerModel - Interactive project selection
// =============================================================================

// ProjectRow describes one project offered for selection.
type ProjectRow struct {
	Name       string
	Style      msbuild.Style
	References int
	Packages   int
}

// projectRows summarizes loaded projects for the picker.
func projectRows(projects []*msbuild.Project) []ProjectRow {
	rows := make([]ProjectRow, len(projects))
	for i, p := range projects {
		rows[i] = ProjectRow{
			Name:       p.Name(),
			Style:      p.Style(),
			References: len(p.DependsOn()),
			Packages:   len(p.Packages()),
		}
	}
	return rows
}

// ProjectPickerModel is the bubbletea model for choosing which projects a
// run touches. Legacy projects start selected.
type ProjectPickerModel struct {
	Projects []ProjectRow
	Checked  []bool
	Cursor   int
	Height   int
	Offset   int

	// Confirmed is set when the user accepted the selection with enter.
	Confirmed bool
}

// NewProjectPickerModel creates a picker over rows.
func NewProjectPickerModel(rows []ProjectRow) ProjectPickerModel {
	checked := make([]bool, len(rows))
	for i, r := range rows {
		checked[i] = r.Style == msbuild.Legacy
	}
	return ProjectPickerModel{Projects: rows, Checked: checked, Height: 15}
}

// Selected returns the names of the checked projects, or nil if the picker
// was cancelled.
func (m ProjectPickerModel) Selected() []string {
	if !m.Confirmed {
		return nil
	}
	var names []string
	for i, r := range m.Projects {
		if m.Checked[i] {
			names = append(names, r.Name)
		}
	}
	return names
}

func (m ProjectPickerModel) Init() tea.Cmd {
	return nil
}

func (m ProjectPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Projects)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Projects) > 0 {
				m.Checked = toggled(m.Checked, m.Cursor)
			}
		case "a":
			all := !allChecked(m.Checked)
			checked := make([]bool, len(m.Checked))
			for i := range checked {
				checked[i] = all
			}
			m.Checked = checked
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m ProjectPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Projects"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Projects))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p := m.Projects[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		box := "[ ]"
		if m.Checked[i] {
			box = "[x]"
		}
		rows = append(rows, []string{cursor + box, p.Name, p.Style.String(), strconv.Itoa(p.References), strconv.Itoa(p.Packages)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("", "Project", "Style", "Refs", "Packages").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Projects) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col >= 2 {
				base = base.Foreground(colorGray)
			}
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			if m.Checked[idx] && col < 2 {
				return base.Foreground(colorGreen)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] %d selected", m.Cursor+1, len(m.Projects), countChecked(m.Checked))))

	return b.String()
}

// runProjectPicker shows the picker and returns the chosen project names.
// A cancelled picker returns nil.
func runProjectPicker(projects []*msbuild.Project) ([]string, error) {
	final, err := tea.NewProgram(NewProjectPickerModel(projectRows(projects))).Run()
	if err != nil {
		return nil, fmt.Errorf("project picker: %w", err)
	}
	return final.(ProjectPickerModel).Selected(), nil
}

// toggled returns a copy of checked with entry i flipped, so models passed
// by value never share state.
func toggled(checked []bool, i int) []bool {
	out := make([]bool, len(checked))
	copy(out, checked)
	out[i] = !out[i]
	return out
}

func allChecked(checked []bool) bool {
	return countChecked(checked) == len(checked)
}

func countChecked(checked []bool) int {
	n := 0
	for _, c := range checked {
		if c {
			n++
		}
	}
	return n
}
