package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"depswap/internal/app"
	"depswap/internal/types"
)

var (
	iris  = lipgloss.Color("#8B5CF6")
	slate = lipgloss.Color("#667085")
	green = lipgloss.Color("#22A06B")

	unitStyle = lipgloss.NewStyle().
			Foreground(iris).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	versionStyle = lipgloss.NewStyle().
			Foreground(slate)

	swapStyle = lipgloss.NewStyle().
			Foreground(green)

	emptyStyle = lipgloss.NewStyle().
			Foreground(slate).
			Faint(true)
)

func renderDependencies(w io.Writer, units []types.UnitDependencies) {
	if len(units) == 0 {
		fmt.Fprintln(w, emptyStyle.Render("no build units"))
		return
	}
	for _, unit := range units {
		fmt.Fprintln(w, unitStyle.Render(unit.Unit.Name))
		if len(unit.Dependencies) == 0 {
			fmt.Fprintln(w, itemStyle.Render(emptyStyle.Render("(no remote dependencies)")))
			continue
		}
		for _, dep := range unit.Dependencies {
			fmt.Fprintln(w, itemStyle.Render(dep.Name+" - "+versionStyle.Render(dep.Version)))
		}
	}
}

func renderSwaps(w io.Writer, units []types.UnitSwaps) {
	if len(units) == 0 {
		fmt.Fprintln(w, emptyStyle.Render("no active swaps"))
		return
	}
	for _, unit := range units {
		fmt.Fprintln(w, unitStyle.Render(unit.Unit.Name))
		for _, swap := range unit.Swaps {
			line := swapStyle.Render(swap.OriginalName) + " - " + versionStyle.Render(swap.Version) + " -> " + swap.LocalIdentifier
			fmt.Fprintln(w, itemStyle.Render(line))
		}
	}
}

func renderManifests(w io.Writer, entries []types.LocalManifest, empty string) {
	if len(entries) == 0 {
		fmt.Fprintln(w, emptyStyle.Render(empty))
		return
	}
	for _, entry := range entries {
		fmt.Fprintln(w, swapStyle.Render(entry.Name)+" -> "+entry.Path)
	}
}

func renderRefresh(w io.Writer, result app.RefreshResult) {
	renderDependencies(w, result.Dependencies)
	fmt.Fprintln(w)
	renderSwaps(w, result.Swaps)
}
