// Package tui is the console front end: the engine runs in the background, narration
// scrolls on the left, the human's secret and the roster sit on the right, and the
// input line is live only while the game is waiting for the human.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
)

type sessionState int

const (
	stateStarting sessionState = iota
	statePlaying
	stateOver
	stateError
)

type model struct {
	state     sessionState
	textInput textinput.Model
	viewport  viewport.Model
	renderer  *glamour.TermRenderer
	cancel    context.CancelFunc

	gameLog  string
	width    int
	height   int
	info     *events.GameInfo
	turns    int
	unlocked bool
	pending  *promptMsg
	result   *models.GameResult
	summary  string
	err      error
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D7875F")).
			Italic(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

func newModel(cancel context.CancelFunc, renderer *glamour.TermRenderer) model {
	ti := textinput.New()
	ti.Placeholder = "Waiting for the other players..."
	ti.CharLimit = 280
	ti.Width = 60

	return model{
		state:     stateStarting,
		textInput: ti,
		renderer:  renderer,
		cancel:    cancel,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// Messages sent into the program from the game goroutine.
type (
	logMsg   struct{ line string }
	warnMsg  struct{ msg string }
	infoMsg  struct{ info events.GameInfo }
	eventMsg struct{ event events.Event }

	promptMsg struct {
		prompt string
		reply  chan<- string
	}

	doneMsg struct {
		result *models.GameResult
		err    error
	}
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.cancel()
			return m, tea.Quit

		case tea.KeyEsc:
			if m.state == stateOver || m.state == stateError {
				return m, tea.Quit
			}

		case tea.KeyEnter:
			if m.state == stateOver || m.state == stateError {
				return m, tea.Quit
			}
			if m.pending == nil {
				return m, nil
			}
			line := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()
			m.pending.reply <- line
			m.pending = nil
			m.textInput.Blur()
			m.textInput.Placeholder = "Waiting for the other players..."
			m.appendLog(userStyle.Width(m.logWidth()).Render("> " + line))
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(m.logWidth(), msg.Height-6)
		} else {
			m.viewport.Width = m.logWidth()
			m.viewport.Height = msg.Height - 6
		}
		m.viewport.SetContent(m.gameLog)
		m.viewport.GotoBottom()

	case logMsg:
		m.appendLog(gameStyle.Width(m.logWidth()).Render(msg.line))
		return m, nil

	case warnMsg:
		m.appendLog(warnStyle.Width(m.logWidth()).Render("! " + msg.msg))
		return m, nil

	case infoMsg:
		info := msg.info
		m.info = &info
		m.state = statePlaying
		return m, nil

	case eventMsg:
		switch msg.event.Kind {
		case events.KindTurn:
			m.turns++
		case events.KindActionsUnlocked:
			m.unlocked = true
		}
		return m, nil

	case promptMsg:
		m.pending = &msg
		m.appendLog(promptStyle.Width(m.logWidth()).Render(msg.prompt))
		m.textInput.Placeholder = "Type your reply and press Enter"
		m.textInput.Reset()
		return m, m.textInput.Focus()

	case doneMsg:
		m.pending = nil
		m.textInput.Blur()
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.state = stateOver
		m.summary = m.renderSummary()
		return m, nil
	}

	if m.pending != nil {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) appendLog(s string) {
	if m.gameLog != "" {
		m.gameLog += "\n"
	}
	m.gameLog += s
	m.viewport.SetContent(m.gameLog)
	m.viewport.GotoBottom()
}

func (m model) logWidth() int {
	if m.width == 0 {
		return 80
	}
	return int(float64(m.width) * 0.7)
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateStarting:
		s = "\n  Seating the players... please wait.\n"

	case statePlaying:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)
		help := helpStyle.Render("Enter to reply when prompted. Ctrl+C abandons the game.")
		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+help,
		)

	case stateOver:
		s = m.summary + "\n" + helpStyle.Render("Press Enter to leave.")

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) human() *models.Player {
	if m.info == nil {
		return nil
	}
	for i := range m.info.Players {
		if m.info.Players[i].IsHuman {
			return &m.info.Players[i]
		}
	}
	return nil
}

func (m model) renderState() string {
	if m.info == nil {
		return ""
	}

	var b strings.Builder
	if h := m.human(); h != nil {
		b.WriteString(titleStyle.Render("YOUR SECRET") + "\n")
		if h.IsSpy() {
			b.WriteString("You are the SPY.\nFind the location.\n\n")
		} else {
			fmt.Fprintf(&b, "Location: %s\nRole: %s\n\n", h.Secret.Location, h.Secret.Role)
		}
	}

	b.WriteString(titleStyle.Render("PLAYERS") + "\n")
	for _, p := range m.info.Players {
		fmt.Fprintf(&b, "- %s\n", p.Name)
	}

	b.WriteString("\n" + titleStyle.Render("TURNS") + "\n")
	fmt.Fprintf(&b, "%d / %d\n", m.turns, m.info.Config.Rounds)
	if m.unlocked {
		b.WriteString("Guesses and accusations unlocked\n")
	}

	stateWidth := int(float64(m.width) * 0.27)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(b.String())
}

// summaryMarkdown describes the finished game.
func (m model) summaryMarkdown() string {
	var b strings.Builder
	b.WriteString("# Game over\n\n")
	if m.result == nil {
		return b.String()
	}
	r := m.result
	fmt.Fprintf(&b, "**Winner:** %s\n\n", r.Winner)
	fmt.Fprintf(&b, "%s\n\n", r.Reason)
	fmt.Fprintf(&b, "The location was **%s** and the spy was **%s**.\n\n", r.Location, r.SpyName)
	if r.SpyGuess != "" {
		fmt.Fprintf(&b, "The spy guessed *%s*.\n\n", r.SpyGuess)
	}
	if m.info != nil {
		b.WriteString("| Player | Role |\n|---|---|\n")
		for _, p := range m.info.Players {
			role := p.Secret.Role
			if p.IsSpy() {
				role = "Spy"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", p.Name, role)
		}
	}
	fmt.Fprintf(&b, "\n%d questions were asked.\n", r.Turns)
	return b.String()
}

func (m model) renderSummary() string {
	md := m.summaryMarkdown()
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
