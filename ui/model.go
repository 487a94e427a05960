// Package ui renders build state for the terminal: the interactive
// dashboard and the one-shot status table.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jesspatton/watson/engine"
)

// pollInterval is how often the dashboard asks the daemon for status.
const pollInterval = time.Second

// Pane represents a distinct section of the UI.
type Pane int

const (
	// PaneProjects is the project list.
	PaneProjects Pane = iota
	// PaneOutput is the build output pane.
	PaneOutput
)

// Client is the daemon connection the dashboard polls.
type Client interface {
	Status() ([]engine.ProjectStatus, error)
	Build(name string) error
}

// Model represents the application state for the Bubbletea program.
type Model struct {
	// UI State
	activePane Pane
	width      int
	height     int
	ready      bool
	showHelp   bool
	cursor     int
	viewport   viewport.Model

	// Search State
	searchMode        bool
	searchFocus       bool
	searchInput       textinput.Model
	searchMatches     []int
	currentMatchIndex int

	// Components
	keys KeyMap
	help help.Model

	// Data / Dependencies
	client   Client
	endpoint string
	projects []engine.ProjectStatus
	err      error
	notice   string
	updated  time.Time
}

// Messages

// tickMsg triggers the next status poll.
type tickMsg time.Time

// StatusMsg carries a status poll result.
type StatusMsg struct {
	Projects []engine.ProjectStatus
	Err      error
}

// BuildMsg reports the result of a rebuild request.
type BuildMsg struct {
	Name string
	Err  error
}

// NewModel creates a dashboard that polls client. endpoint is only shown in
// the footer.
func NewModel(client Client, endpoint string) Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})
	h.Styles.FullKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.FullSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})
	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.Prompt = "/"
	ti.CharLimit = 156
	ti.Width = 20

	return Model{
		activePane:  PaneProjects,
		client:      client,
		endpoint:    endpoint,
		keys:        NewKeyMap(),
		help:        h,
		searchInput: ti,
	}
}

// Init initializes the Bubbletea program.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus, tick())
}

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Width: (Total / 2) - Border(2) - Padding(2)
		paneWidth := (m.width / 2) - 4
		// Height: Total - Footer(1) - Border(2), plus 2 lines of margin
		paneHeight := m.height - 5
		// Header takes 2 lines (Title + Empty line)
		viewportHeight := paneHeight - 2

		if !m.ready {
			m.viewport = viewport.New(paneWidth, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = paneWidth
			m.viewport.Height = viewportHeight
		}
		m.refreshOutput()

	case tickMsg:
		return m, tea.Batch(m.fetchStatus, tick())

	case StatusMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.projects = msg.Projects
			m.updated = time.Now()
			if m.cursor >= len(m.projects) {
				m.cursor = max(len(m.projects)-1, 0)
			}
			if m.searchMode {
				m.updateMatches()
			}
			m.refreshOutput()
		}
		return m, nil

	case BuildMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("rebuild of %s failed: %v", msg.Name, msg.Err)
		} else {
			m.notice = fmt.Sprintf("rebuild of %s requested", msg.Name)
		}
		return m, m.fetchStatus
	}

	if m.activePane == PaneOutput {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode && m.searchFocus {
		return m.handleSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		if m.activePane == PaneProjects {
			m.activePane = PaneOutput
		} else {
			m.activePane = PaneProjects
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchStatus
	case key.Matches(msg, m.keys.Rebuild):
		if p, ok := m.selected(); ok {
			return m, m.rebuild(p.Name)
		}
		return m, nil
	}

	if m.activePane == PaneOutput {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.searchMode {
		switch {
		case key.Matches(msg, m.keys.ExitSearch):
			m.exitSearch()
			return m, nil
		case key.Matches(msg, m.keys.Search):
			m.searchFocus = true
			m.searchInput.Focus()
			return m, textinput.Blink
		case key.Matches(msg, m.keys.NextMatch):
			if len(m.searchMatches) > 0 {
				m.currentMatchIndex = (m.currentMatchIndex + 1) % len(m.searchMatches)
				m.moveCursor(m.searchMatches[m.currentMatchIndex])
			}
			return m, nil
		case key.Matches(msg, m.keys.PrevMatch):
			if len(m.searchMatches) > 0 {
				m.currentMatchIndex = (m.currentMatchIndex - 1 + len(m.searchMatches)) % len(m.searchMatches)
				m.moveCursor(m.searchMatches[m.currentMatchIndex])
			}
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchFocus = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(m.cursor - 1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(m.cursor + 1)
	case key.Matches(msg, m.keys.Enter):
		m.exitSearch()
		m.activePane = PaneOutput
	}
	return m, nil
}

func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ExitSearch):
		m.exitSearch()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		// Switch to navigation mode
		m.searchFocus = false
		m.searchInput.Blur()
		if len(m.searchMatches) > 0 {
			m.currentMatchIndex = 0
			m.moveCursor(m.searchMatches[0])
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.updateMatches()
	return m, cmd
}

func (m *Model) exitSearch() {
	m.searchMode = false
	m.searchFocus = false
	m.searchInput.Blur()
	m.searchInput.Reset()
	m.searchMatches = nil
}

func (m *Model) updateMatches() {
	m.searchMatches = matchProjects(m.projects, m.searchInput.Value())
	if m.currentMatchIndex >= len(m.searchMatches) {
		m.currentMatchIndex = 0
	}
}

func (m *Model) moveCursor(i int) {
	if i < 0 || i >= len(m.projects) {
		return
	}
	if i != m.cursor {
		m.cursor = i
		m.refreshOutput()
		m.viewport.GotoBottom()
	}
}

func (m Model) selected() (engine.ProjectStatus, bool) {
	if m.cursor < 0 || m.cursor >= len(m.projects) {
		return engine.ProjectStatus{}, false
	}
	return m.projects[m.cursor], true
}

// refreshOutput loads the selected project's last output into the viewport.
func (m *Model) refreshOutput() {
	if !m.ready {
		return
	}
	p, ok := m.selected()
	if !ok {
		m.viewport.SetContent("No projects are being watched.\nRun `watson watch` in a project directory.")
		return
	}
	m.viewport.SetContent(m.wrapOutput(m.viewport.Width, describe(p)))
}

func (m Model) wrapOutput(width int, content string) string {
	if width <= 0 {
		return content
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

// View renders the UI based on the current state.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	if m.width == 0 {
		return "Loading..."
	}

	paneWidth := (m.width / 2) - 2
	paneHeight := m.height - 4

	projectsRender := m.renderProjects(paneWidth, paneHeight)

	var outputView strings.Builder
	outputView.WriteString(titleStyle.Render("OUTPUT") + "\n\n")

	if !m.ready {
		outputView.WriteString("Initializing...")
	} else {
		outputView.WriteString(m.viewport.View())
	}

	outputStyle := paneStyle
	if m.activePane == PaneOutput {
		outputStyle = activePaneStyle
	}
	outputRender := outputStyle.
		Width(paneWidth).
		Height(paneHeight).
		Render(outputView.String())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, projectsRender, outputRender)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, panes, footer)
}

func (m Model) renderFooter() string {
	var left string
	switch {
	case m.err != nil:
		left = failureStyle.Render(fmt.Sprintf("daemon unreachable at %s: %v", m.endpoint, m.err))
	case m.notice != "":
		left = statusStyle.Render(m.notice)
	default:
		left = statusStyle.Render(fmt.Sprintf("%s • %d projects", m.endpoint, len(m.projects)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, m.help.View(m.keys))
}

// Commands

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchStatus() tea.Msg {
	projects, err := m.client.Status()
	return StatusMsg{Projects: projects, Err: err}
}

func (m Model) rebuild(name string) tea.Cmd {
	return func() tea.Msg {
		return BuildMsg{Name: name, Err: m.client.Build(name)}
	}
}
