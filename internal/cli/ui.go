package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
	"github.com/matzehuels/projmigrate/pkg/reconcile"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError     = lipgloss.NewStyle().Foreground(colorRed)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleTableHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleTableBorder = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output path.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints graph statistics on a single line.
func printStats(nodeCount, edgeCount int, cached bool) {
	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf("%d projects · %d references · ", nodeCount, edgeCount)) +
		statusStyle.Render(status))
}

// printNextStep prints a suggested follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Println()
}

// =============================================================================
// Migration Summary
// =============================================================================

// printMigrateSummary prints the per-project outcome and every package
// upgrade of a run.
func printMigrateSummary(res *pipeline.Result) {
	printNewline()
	fmt.Println(projectTable(res.Projects))

	if len(res.Reconcile.Upgrades) > 0 {
		printNewline()
		fmt.Println(upgradeTable(res.Reconcile.Upgrades))
	}
	printNewline()

	s := res.Stats
	printKeyValue("Run", res.RunID)
	printKeyValue("Projects", fmt.Sprintf("%d loaded, %d converted, %d excluded", s.Loaded, s.Converted, s.Excluded))
	printKeyValue("Upgrades", fmt.Sprintf("%d in %d passes", len(res.Reconcile.Upgrades), res.Reconcile.Passes))
	if s.Pruned > 0 {
		printKeyValue("Pruned", fmt.Sprintf("%d files", s.Pruned))
	}
	printKeyValue("Duration", totalDuration(s).Round(time.Millisecond).String())
	printNewline()

	if n := countSeverity(res.Diagnostics, diag.Error); n > 0 {
		printWarning("%d errors reported, affected projects were left untouched", n)
	}
	if !res.Reconcile.Converged {
		printWarning("Versions did not converge within %d passes", res.Reconcile.Passes)
	}
	switch {
	case res.DryRun:
		printInfo("Dry run, nothing was written")
	case s.Saved > 0:
		printSuccess("Saved %d projects", s.Saved)
	default:
		printSuccess("Everything is up to date")
	}
}

func projectTable(projects []pipeline.ProjectResult) *table.Table {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.Name, p.Style, projectStatus(p), strconv.Itoa(p.Upgrades), strconv.Itoa(len(p.Pruned))})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("Project", "Style", "Status", "Upgrades", "Pruned").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			if col != 2 || row >= len(projects) {
				return lipgloss.NewStyle()
			}
			p := projects[row]
			switch {
			case p.Excluded:
				return StyleError
			case p.Changed():
				return StyleSuccess
			}
			return StyleDim
		})
}

func projectStatus(p pipeline.ProjectResult) string {
	switch {
	case p.Excluded:
		return "excluded"
	case p.Converted && p.Saved:
		return "converted"
	case p.Converted:
		return "convertible"
	case p.Upgrades > 0 && p.Saved:
		return "upgraded"
	case p.Upgrades > 0:
		return "upgradable"
	}
	return "unchanged"
}

func upgradeTable(upgrades []reconcile.Upgrade) *table.Table {
	rows := make([][]string, 0, len(upgrades))
	for _, u := range upgrades {
		rows = append(rows, []string{u.Module, u.Package, u.From, u.To})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("Project", "Package", "From", "To").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleTableHeader
			case col == 2:
				return StyleDim
			case col == 3:
				return StyleHighlight
			}
			return lipgloss.NewStyle()
		})
}

func countSeverity(ds []diag.Diagnostic, s diag.Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == s {
			n++
		}
	}
	return n
}

func totalDuration(s pipeline.Stats) time.Duration {
	var d time.Duration
	for _, st := range s.Stages {
		d += st.Duration
	}
	return d
}
