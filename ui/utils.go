package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jesspatton/watson/engine"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
)

// statusIcon picks the glyph for a project: the phase while a build is
// pending or running, otherwise the last outcome.
func statusIcon(p engine.ProjectStatus) string {
	switch p.Phase {
	case engine.PhaseBuilding:
		return "⏳"
	case engine.PhaseScheduled:
		return "🕒"
	}
	switch p.Status {
	case engine.StatusSuccess:
		return "✅"
	case engine.StatusFailure:
		return "❌"
	default:
		return "·"
	}
}

// since formats the time elapsed since t coarsely, for list entries.
func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// describe renders a project's last build for the output pane.
func describe(p engine.ProjectStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(p.Name), statusStyle.Render(p.Dir))

	switch p.Status {
	case engine.StatusAbsent:
		b.WriteString("\nNot built yet.")
		return b.String()
	case engine.StatusSuccess:
		b.WriteString(successStyle.Render("PASS"))
	default:
		b.WriteString(failureStyle.Render(fmt.Sprintf("FAIL (exit %d)", p.ExitCode)))
	}
	fmt.Fprintf(&b, " after %s, %s, build #%d\n", p.Duration.Round(time.Millisecond), since(p.FinishedAt), p.Builds)
	if p.Command != "" {
		fmt.Fprintf(&b, "$ %s\n", p.Command)
	}
	if p.Output != "" {
		b.WriteString("\n" + p.Output)
	}
	return b.String()
}

// matchProjects returns the indexes of projects whose name contains query,
// case-insensitively.
func matchProjects(projects []engine.ProjectStatus, query string) []int {
	if query == "" {
		return nil
	}
	query = strings.ToLower(query)
	var matches []int
	for i, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), query) {
			matches = append(matches, i)
		}
	}
	return matches
}

// RenderStatus formats projects as a table for `watson status`. With
// verbose set, the last output of failed builds is included, cut to width
// columns.
func RenderStatus(projects []engine.ProjectStatus, verbose bool, width uint) string {
	if len(projects) == 0 {
		return statusStyle.Render("No projects are being watched.") + "\n"
	}

	nameWidth := 0
	for _, p := range projects {
		nameWidth = max(nameWidth, lipgloss.Width(p.Name))
	}
	nameColumn := lipgloss.NewStyle().Width(nameWidth + 2)

	var b strings.Builder
	for _, p := range projects {
		var state string
		switch {
		case p.Phase == engine.PhaseBuilding:
			state = buildingStyle.Render("building")
		case p.Phase == engine.PhaseScheduled:
			state = buildingStyle.Render("scheduled")
		case p.Status == engine.StatusSuccess:
			state = successStyle.Render("passed")
		case p.Status == engine.StatusFailure:
			state = failureStyle.Render("failed")
		default:
			state = "not built"
		}

		line := fmt.Sprintf("%s %s%s %s", statusIcon(p), nameColumn.Render(p.Name), state, statusStyle.Render(since(p.FinishedAt)))
		b.WriteString(line + "\n")

		if verbose && p.Status == engine.StatusFailure && p.Output != "" {
			var out []string
			for _, l := range strings.Split(p.Output, "\n") {
				if width > 0 {
					l = truncate.StringWithTail(l, width, "…")
				}
				out = append(out, l)
			}
			b.WriteString(indent.String(strings.Join(out, "\n"), 4) + "\n")
		}
	}
	return b.String()
}
