package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Build outcomes and phases each get a colour so the project list
// and `watson status` read the same way.
var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#626262"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	passed    = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	failed    = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F55081"}
	running   = lipgloss.AdaptiveColor{Light: "#D7A600", Dark: "#F1C40F"}
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	activePaneStyle = paneStyle.BorderForeground(highlight)

	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	successStyle  = lipgloss.NewStyle().Foreground(passed)
	failureStyle  = lipgloss.NewStyle().Foreground(failed).Bold(true)
	buildingStyle = lipgloss.NewStyle().Foreground(running)
	selectedStyle = lipgloss.NewStyle().Foreground(highlight)
	matchStyle    = lipgloss.NewStyle().Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
)

// legend explains the status glyphs on the help screen.
var legend = lipgloss.JoinHorizontal(lipgloss.Top,
	buildingStyle.Render("⏳ building   🕒 scheduled"),
	"   ",
	successStyle.Render("✅ passed"),
	"   ",
	failureStyle.Render("❌ failed"),
	"   ",
	statusStyle.Render("· not built yet"),
)
