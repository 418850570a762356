// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typex/internal/game"
	"github.com/verte-zerg/typex/internal/guard"
	"github.com/verte-zerg/typex/internal/model"
)

const maxQuickInsert = 9

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Copy().Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	lockedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	passStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14"))
)

type screen int

const (
	screenLevels screen = iota
	screenGame
)

// Model implements the Bubble Tea game UI.
type Model struct {
	ctl *game.Controller

	width  int
	height int

	screen   screen
	selected int
	notice   string
	storage  string

	verify textinput.Model
}

// NewModel constructs the game UI. A positive startLevel opens that level
// directly; otherwise the level list is shown.
func NewModel(ctl *game.Controller, startLevel int) *Model {
	ti := textinput.New()
	ti.Placeholder = ctl.Gate().Phrase()
	ti.CharLimit = 64
	ti.Width = 32

	m := &Model{ctl: ctl, verify: ti}
	m.selected = firstOpenIndex(ctl.Levels())
	if startLevel > 0 {
		m.enter(startLevel)
	}
	return m
}

// SetStorage labels where results are saved, shown on the level list.
func (m *Model) SetStorage(mode string) {
	m.storage = mode
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenLevels {
			return m.updateLevels(msg)
		}
		switch m.ctl.Phase() {
		case game.PhaseVerifying:
			return m.updateVerify(msg)
		case game.PhaseFinished:
			return m.updateFinished(msg)
		default:
			return m.updateTyping(msg), nil
		}
	default:
		if m.screen == screenGame && m.ctl.Phase() == game.PhaseVerifying {
			var cmd tea.Cmd
			m.verify, cmd = m.verify.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *Model) updateLevels(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	levels := m.ctl.Levels()
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(levels)-1 {
			m.selected++
		}
	case "enter", " ":
		if m.selected >= 0 && m.selected < len(levels) {
			m.enter(levels[m.selected].Level.ID)
		}
	}
	return m, nil
}

func (m *Model) updateTyping(msg tea.KeyMsg) *Model {
	switch msg.Type {
	case tea.KeyEsc:
		m.backToLevels()
	case tea.KeyCtrlR:
		m.restart()
	case tea.KeyBackspace, tea.KeyDelete:
		m.ctl.Backspace()
	case tea.KeySpace:
		m.ctl.Press(' ')
	case tea.KeyEnter:
		m.ctl.Press('\n')
	case tea.KeyTab:
		m.ctl.Press('\t')
	case tea.KeyRunes:
		if msg.Alt {
			m.insertByIndex(msg.Runes)
			break
		}
		for _, r := range msg.Runes {
			m.ctl.Press(r)
		}
	}
	if m.ctl.Phase() == game.PhaseVerifying {
		m.verify.Reset()
		m.verify.Focus()
	}
	return m
}

func (m *Model) insertByIndex(runes []rune) {
	if len(runes) != 1 || runes[0] < '1' || runes[0] > '9' {
		return
	}
	sess := m.ctl.Session()
	if sess == nil {
		return
	}
	idx := int(runes[0] - '1')
	available := sess.Available()
	if idx >= len(available) {
		return
	}
	m.ctl.Insert(available[idx].ID)
}

func (m *Model) updateFinished(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "ctrl+r":
		m.restart()
	case "n":
		m.notice = ""
		if err := m.ctl.NextLevel(); err != nil {
			m.notice = enterNotice(err)
		}
	case "q", "esc":
		m.backToLevels()
	}
	return m, nil
}

func (m *Model) updateVerify(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.backToLevels()
		return m, nil
	case tea.KeyEnter:
		err := m.ctl.Verify(m.verify.Value())
		switch {
		case err == nil:
			m.notice = ""
			m.verify.Blur()
		case errors.Is(err, guard.ErrVerificationFailed):
			m.notice = fmt.Sprintf("Verification failed. Type exactly: %s", m.ctl.Gate().Phrase())
			m.verify.Reset()
		default:
			m.notice = err.Error()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.verify, cmd = m.verify.Update(msg)
	return m, cmd
}

func (m *Model) enter(levelID int) {
	m.notice = ""
	if err := m.ctl.Enter(levelID); err != nil {
		m.notice = enterNotice(err)
		m.screen = screenLevels
		return
	}
	m.screen = screenGame
}

func (m *Model) restart() {
	m.notice = ""
	if err := m.ctl.Restart(); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) backToLevels() {
	m.ctl.Leave()
	m.verify.Blur()
	m.notice = ""
	m.screen = screenLevels
}

func enterNotice(err error) string {
	switch {
	case errors.Is(err, game.ErrLevelNotFound):
		return "No more levels. Pick one from the list."
	case errors.Is(err, game.ErrLevelLocked):
		return "That level is still locked."
	default:
		return err.Error()
	}
}

func firstOpenIndex(levels []game.LevelStatus) int {
	idx := 0
	for i, l := range levels {
		if l.Accessible && !l.Completed {
			return i
		}
		if l.Accessible {
			idx = i
		}
	}
	return idx
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.screen == screenLevels {
		content = m.viewLevels()
	} else {
		switch m.ctl.Phase() {
		case game.PhaseVerifying:
			content = m.viewVerify()
		case game.PhaseFinished:
			content = m.viewResults()
		default:
			return m.viewTyping()
		}
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) viewLevels() string {
	p := m.ctl.Profile()
	lines := []string{
		titleStyle.Render(fmt.Sprintf("typex · %s · level %d", p.Username, p.Level)),
	}
	if m.storage != "" {
		lines = append(lines, footerStyle.Render("Storage: "+m.storage))
	}
	lines = append(lines, "")
	for i, st := range m.ctl.Levels() {
		marker := "  "
		if i == m.selected {
			marker = "> "
		}
		line := fmt.Sprintf("%sLevel %d: %s  (%d WPM)", marker, st.Level.ID, st.Level.Name, st.Level.RequiredWPM)
		if st.Completed {
			line += fmt.Sprintf("  best %d", st.BestWPM)
		}
		switch {
		case !st.Accessible:
			line = lockedStyle.Render(line + "  locked")
		case i == m.selected:
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "")
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice), "")
	}
	lines = append(lines, footerStyle.Render("↑/↓ select · enter play · q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) viewTyping() string {
	sess := m.ctl.Session()
	if sess == nil {
		return ""
	}
	target := sess.Target()
	typed := sess.Typed()
	cursorIndex := -1
	if len(typed) < len(target) {
		cursorIndex = len(typed)
	}
	styledRunes := buildStyledRunes(target, typed, cursorIndex)
	header := titleStyle.Render(fmt.Sprintf("Level %d: %s", sess.Level().ID, sess.Level().Name))
	abbrevs := m.renderAbbreviations()

	if m.width == 0 || m.height == 0 {
		return header + "\n\n" + renderStyledRunes(styledRunes) + "\n\n" + abbrevs
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	wrapped := wrapStyledRunes(styledRunes, contentWidth)
	parts := []string{header, "", lipgloss.NewStyle().Width(contentWidth).Render(wrapped)}
	if abbrevs != "" {
		parts = append(parts, "", abbrevs)
	}
	content := strings.Join(parts, "\n")
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderAbbreviations() string {
	sess := m.ctl.Session()
	if sess == nil || len(sess.Available()) == 0 {
		return ""
	}
	lines := make([]string, 0, len(sess.Available()))
	for i, a := range sess.Available() {
		key := "     "
		if i < maxQuickInsert {
			key = fmt.Sprintf("alt+%d", i+1)
		}
		lines = append(lines, fmt.Sprintf("%s  %-8s %s", key, a.Trigger, a.Description))
	}
	return footerStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	sess := m.ctl.Session()
	if sess == nil || len(sess.Target()) == 0 {
		return ""
	}
	segments := []string{
		fmt.Sprintf("Errors %d", sess.Errors()),
		fmt.Sprintf("Accuracy %d%%", sess.LiveAccuracy()),
		fmt.Sprintf("Progress %d%%", sess.Progress()),
		fmt.Sprintf("Target %d WPM", m.ctl.Level().RequiredWPM),
	}
	if sess.AbbreviationsUsed() > 0 {
		segments = append(segments, fmt.Sprintf("Abbreviations %d", sess.AbbreviationsUsed()))
	}
	footer := strings.Join(segments, " · ")
	return footerStyle.Render(footer + "   esc levels · ctrl+r restart")
}

func (m *Model) viewResults() string {
	out, ok := m.ctl.Outcome()
	if !ok {
		return ""
	}
	lvl := m.ctl.Level()
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Level %d: %s complete", lvl.ID, lvl.Name)),
		"",
		fmt.Sprintf("WPM        %d (required %d)", out.Score.WPM, lvl.RequiredWPM),
		fmt.Sprintf("Accuracy   %d%%", out.Score.Accuracy),
		fmt.Sprintf("Abbrevs    %d", out.Score.AbbreviationsUsed),
		"",
	}
	if out.Passed {
		lines = append(lines, passStyle.Render("Passed!"))
	} else {
		lines = append(lines, incorrectStyle.Render(fmt.Sprintf("Reach %d WPM to pass this level.", lvl.RequiredWPM)))
	}
	if out.Announced != nil {
		lines = append(lines, "", renderUnlock(*out.Announced))
	}
	lines = append(lines, "")
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice), "")
	}
	help := "r retry · esc levels"
	if out.Passed {
		help = "n next level · " + help
	}
	lines = append(lines, footerStyle.Render(help))
	return strings.Join(lines, "\n")
}

func renderUnlock(a model.Abbreviation) string {
	return passStyle.Render(fmt.Sprintf("New abbreviation unlocked: %s → %s", a.Trigger, a.Expansion))
}

func (m *Model) viewVerify() string {
	held, _ := m.ctl.Gate().Pending()
	lines := []string{
		titleStyle.Render("That was fast."),
		"",
		fmt.Sprintf("%d WPM is above %d WPM.", held.Entry.WPM, m.ctl.Gate().Threshold()),
		fmt.Sprintf("Type %q to save this result.", m.ctl.Gate().Phrase()),
		"",
		m.verify.View(),
		"",
	}
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice), "")
	}
	lines = append(lines, footerStyle.Render("enter confirm · esc discard"))
	return strings.Join(lines, "\n")
}
