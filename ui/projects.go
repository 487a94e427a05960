package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jesspatton/watson/engine"
)

func (m Model) renderProjects(paneWidth, paneHeight int) string {
	var view strings.Builder
	view.WriteString(titleStyle.Render("PROJECTS") + "\n\n")

	// Calculate available height for the list
	listHeight := paneHeight - 2
	if m.searchMode {
		listHeight -= 3 // 1 line text + 2 lines border
	}

	if len(m.projects) == 0 {
		if m.updated.IsZero() && m.err == nil {
			view.WriteString("Connecting...")
		} else {
			view.WriteString("No projects.\nRun `watson watch` in a project directory.")
		}
	} else {
		start, end := m.calculateVisibleRange(listHeight)
		for i := start; i < end; i++ {
			m.renderProject(&view, m.projects[i], i)
		}
	}

	// Fill remaining space to push search bar to bottom
	current := view.String()
	target := paneHeight - searchBarHeight(m.searchMode)
	if h := lipgloss.Height(current); h < target {
		current += strings.Repeat("\n", target-h)
	}

	if m.searchMode {
		searchStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Width(paneWidth - 4) // Account for border width

		searchContent := m.searchInput.View()
		if !m.searchFocus {
			hints := "n: next • N: prev • Esc: exit"
			hintsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

			availableWidth := paneWidth - 6 // -4 for outer margin, -2 for border
			contentWidth := lipgloss.Width(searchContent)
			hintsWidth := lipgloss.Width(hints)

			if contentWidth+hintsWidth+1 < availableWidth {
				padding := strings.Repeat(" ", availableWidth-contentWidth-hintsWidth)
				searchContent += padding + hintsStyle.Render(hints)
			}
		}
		current += searchStyle.Render(searchContent)
	}

	style := paneStyle
	if m.activePane == PaneProjects {
		style = activePaneStyle
	}

	return style.
		Width(paneWidth).
		Height(paneHeight).
		Render(current)
}

func searchBarHeight(searchMode bool) int {
	if searchMode {
		return 3
	}
	return 0
}

func (m Model) calculateVisibleRange(height int) (int, int) {
	start := 0
	end := len(m.projects)

	if height > 0 && len(m.projects) > height {
		if m.cursor < height/2 {
			start = 0
			end = height
		} else if m.cursor > len(m.projects)-height/2 {
			start = len(m.projects) - height
			end = len(m.projects)
		} else {
			start = m.cursor - height/2
			end = m.cursor + height/2
		}
	}
	return start, end
}

func (m Model) renderProject(b *strings.Builder, p engine.ProjectStatus, index int) {
	cursor := " "
	if m.cursor == index {
		cursor = ">"
	}

	name := p.Name
	if m.searchMode && m.searchInput.Value() != "" {
		name = highlightMatches(name, m.searchInput.Value())
	}

	line := fmt.Sprintf("%s %s %s", cursor, statusIcon(p), name)
	if p.Builds > 0 {
		line += statusStyle.Render(fmt.Sprintf("(%s)", since(p.FinishedAt)))
	}

	if m.cursor == index {
		b.WriteString(selectedStyle.Render(line) + "\n")
	} else {
		b.WriteString(line + "\n")
	}
}

// highlightMatches marks every case-insensitive occurrence of query in name.
func highlightMatches(name, query string) string {
	lowerName := strings.ToLower(name)
	lowerQuery := strings.ToLower(query)
	if query == "" || !strings.Contains(lowerName, lowerQuery) {
		return name
	}

	var sb strings.Builder
	lastIdx := 0
	for {
		idx := strings.Index(lowerName[lastIdx:], lowerQuery)
		if idx == -1 {
			sb.WriteString(name[lastIdx:])
			break
		}
		idx += lastIdx
		sb.WriteString(name[lastIdx:idx])
		sb.WriteString(matchStyle.Render(name[idx : idx+len(lowerQuery)]))
		lastIdx = idx + len(lowerQuery)
	}
	return sb.String()
}
