// Package boardui provides the Bubble Tea leaderboard and profile browser.
package boardui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/stats"
	"github.com/verte-zerg/typex/internal/store"
)

const (
	tabLeaderboard = iota
	tabProfile
)

const queryTimeout = 5 * time.Second

const (
	colorAccent = lipgloss.Color("#C89A3A")
	colorBright = lipgloss.Color("#F0F0F0")
	colorText   = lipgloss.Color("#B8B8B8")
	colorMuted  = lipgloss.Color("#6E6E6E")
	colorBorder = lipgloss.Color("#4A4A4A")
	colorError  = lipgloss.Color("#FF4D4F")
)

var (
	tabBase        = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder(), true)
	tabActiveStyle = tabBase.Foreground(colorBright).Bold(true).BorderForeground(colorAccent)
	tabIdleStyle   = tabBase.Foreground(colorText).BorderForeground(colorBorder)
	hintStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	cardStyle      = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder(), true).BorderForeground(colorBorder)
	cardLabelStyle = lipgloss.NewStyle().Foreground(colorText)
	cardValueStyle = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	rowsStyle      = lipgloss.NewStyle().Foreground(colorText)
)

// Model browses leaderboard entries and the current player's profile.
type Model struct {
	board   store.LeaderboardStore
	profile model.UserProfile
	levels  []model.Level

	level   int
	entries []model.LeaderboardEntry
	errMsg  string

	tabs       []string
	activeTab  int
	entryTable table.Model
	profileVP  viewport.Model

	filterMode  bool
	filterInput textinput.Model
	filterError string

	width  int
	height int
}

// NewModel constructs a browser showing level (0 for all levels).
func NewModel(board store.LeaderboardStore, profile model.UserProfile, levels []model.Level, level int) *Model {
	m := &Model{
		board:   board,
		profile: profile.Clone(),
		levels:  append([]model.Level(nil), levels...),
		level:   level,
		tabs:    []string{"Leaderboard", "Profile"},
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Level (number or all): "
	m.filterInput.CharLimit = 6
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.entryTable = buildEntryTable(nil, 80, 10)
	m.entryTable.Focus()
	m.profileVP = viewport.New(0, 0)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Entries returns the rows currently shown.
func (m *Model) Entries() []model.LeaderboardEntry {
	return m.entries
}

// Level returns the active level filter, 0 meaning all levels.
func (m *Model) Level() int {
	return m.level
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "left", "h", "right", "l", "tab":
			m.toggleTab()
			return m, tea.ClearScreen
		case "/":
			m.filterMode = true
			m.filterError = ""
			m.filterInput.SetValue(levelLabel(m.level))
			return m, m.filterInput.Focus()
		case "r":
			m.refresh()
			return m, nil
		case "g", "home":
			if m.activeTab == tabLeaderboard {
				m.entryTable.GotoTop()
			} else {
				m.profileVP.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabLeaderboard {
				m.entryTable.GotoBottom()
			} else {
				m.profileVP.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabLeaderboard {
			m.entryTable, cmd = m.entryTable.Update(msg)
		} else {
			m.profileVP, cmd = m.profileVP.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header, body, footer := m.layoutHeights()
	return lipgloss.JoinVertical(lipgloss.Left,
		fitBlock(m.renderHeader(), m.width, header),
		fitBlock(m.renderBody(), m.width, body),
		fitBlock(m.renderFooter(), m.width, footer),
	)
}

func (m *Model) toggleTab() {
	m.activeTab = (m.activeTab + 1) % len(m.tabs)
	if m.activeTab == tabLeaderboard {
		m.entryTable.Focus()
	} else {
		m.entryTable.Blur()
	}
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		level, err := ParseLevel(m.filterInput.Value())
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		m.level = level
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// ParseLevel reads a level filter. Empty input and "all" mean every level.
func ParseLevel(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid level %q (use a positive number or all)", input)
	}
	return n, nil
}

func (m *Model) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	entries, err := m.board.Query(ctx, m.level)
	if err != nil {
		m.errMsg = err.Error()
		m.entries = nil
	} else {
		m.errMsg = ""
		m.entries = entries
	}
	m.entryTable.SetRows(entryRows(m.entries))
	m.entryTable.GotoTop()
	m.renderProfile()
}

func (m *Model) renderProfile() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	cards := renderSummaryCards(stats.Summarize(m.profile), m.profile.Level, width)
	var buf bytes.Buffer
	if err := stats.RenderProfile(&buf, m.profile, m.levels); err != nil {
		m.profileVP.SetContent(fmt.Sprintf("Failed to render profile: %v", err))
		return
	}
	m.profileVP.SetContent(strings.TrimRight(cards+"\n\n"+buf.String(), "\n"))
}

// renderSummaryCards lays the profile totals out as cards, two rows on wide
// terminals and a single column otherwise.
func renderSummaryCards(s stats.Summary, level, width int) string {
	cards := []string{
		metricCard("Level", strconv.Itoa(level)),
		metricCard("Highest WPM", strconv.Itoa(s.HighestWPM)),
		metricCard("Avg Accuracy", fmt.Sprintf("%d%%", s.AverageAccuracy)),
		metricCard("Games", strconv.Itoa(s.GamesCompleted)),
		metricCard("Abbreviations", strconv.Itoa(s.AbbreviationsUnlocked)),
	}
	if width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...),
		lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...),
	)
}

func metricCard(label, value string) string {
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		cardLabelStyle.Render(label),
		cardValueStyle.Render(value),
	))
}

func entryColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Player", Width: 16},
		{Title: "Level", Width: 5},
		{Title: "WPM", Width: 5},
		{Title: "Accuracy", Width: 8},
		{Title: "Abbrevs", Width: 7},
		{Title: "Date", Width: 10},
	}
}

func entryRows(entries []model.LeaderboardEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, table.Row(stats.LeaderboardRow(i+1, e)))
	}
	return rows
}

func buildEntryTable(entries []model.LeaderboardEntry, width, height int) table.Model {
	t := table.New(
		table.WithColumns(entryColumns()),
		table.WithRows(entryRows(entries)),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(entryTableStyles())
	return t
}

func entryTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorBright).
		PaddingRight(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(colorBorder)
	styles.Cell = lipgloss.NewStyle().PaddingRight(1)
	styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	return styles
}

// layoutHeights splits the window into tabs plus summary, body and hints.
// Errors take one extra footer line.
func (m *Model) layoutHeights() (header, body, footer int) {
	header = lipgloss.Height(m.renderTabs()) + 1
	footer = 1
	if m.errMsg != "" || m.filterError != "" {
		footer = 2
	}
	body = maxInt(1, m.height-header-footer)
	return header, body, footer
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.entryTable.SetWidth(m.width)
	m.entryTable.SetHeight(maxInt(1, bodyHeight-1))
	m.profileVP.Width = m.width
	m.profileVP.Height = bodyHeight
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
	m.renderProfile()
}

func (m *Model) renderTabs() string {
	rendered := make([]string, len(m.tabs))
	for i, tab := range m.tabs {
		style := tabIdleStyle
		if i == m.activeTab {
			style = tabActiveStyle
		}
		rendered[i] = style.Render(tab)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m *Model) renderHeader() string {
	summary := fmt.Sprintf("Player: %s  Level filter: %s  Entries: %d", m.profile.Username, levelLabel(m.level), len(m.entries))
	return m.renderTabs() + "\n" + hintStyle.Render(runewidth.Truncate(summary, maxInt(m.width, 0), "..."))
}

func (m *Model) renderBody() string {
	if m.filterMode {
		return "Filter leaderboard (enter to apply, esc to cancel)\n" + m.filterInput.View()
	}
	if m.activeTab == tabProfile {
		return m.profileVP.View()
	}
	if m.errMsg != "" {
		return "Failed to load leaderboard."
	}
	if len(m.entries) == 0 {
		return "No scores yet."
	}
	return rowsStyle.Render(m.entryTable.View())
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Filter: /  Refresh: r  Quit: q"
	if m.filterMode {
		help = "enter: apply  esc: cancel"
	}
	footer := hintStyle.Render(help)
	switch {
	case m.filterError != "":
		footer += "\n" + errorStyle.Render(m.filterError)
	case m.errMsg != "":
		footer += "\n" + errorStyle.Render(m.errMsg)
	}
	return footer
}

func levelLabel(level int) string {
	if level <= 0 {
		return "all"
	}
	return strconv.Itoa(level)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// fitBlock pads or clips s to exactly width x height cells.
func fitBlock(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.NewStyle().
		Width(width).MaxWidth(width).
		Height(height).MaxHeight(height).
		Render(s)
}
