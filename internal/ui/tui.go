package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight)

	noticeStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#888888"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#43BF6D"))

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(highlight)

	viewportStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

type eventMsg Event

type model struct {
	viewport viewport.Model
	input    textinput.Model

	act    Actions
	screen int
	lines  []string
	ready  bool
}

func newModel(act Actions, screen int) *model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, ctrl+l to speak"
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = inputPromptStyle.Render("> ")

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return &model{viewport: vp, input: ti, act: act, screen: screen}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) resize(width, height int) {
	const headerHeight, footerHeight = 1, 3

	h := max(height-headerHeight-footerHeight, 3)

	m.viewport.Width = width
	m.viewport.Height = h
	m.viewport.Style = viewportStyle.Width(width).Height(h)
	m.input.Width = max(width-4, 1)
}

func (m *model) render(ev Event) string {
	switch {
	case ev.System:
		return noticeStyle.Render(ev.Text)
	case strings.HasPrefix(ev.Text, "You"):
		return userStyle.Render(ev.Text)
	default:
		return ev.Text
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.ready = true
		m.viewport.SetContent(strings.Join(m.lines, "\n"))

	case eventMsg:
		m.lines = append(m.lines, m.render(Event(msg)))
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlL:
			return m, m.background(m.act.Listen)
		case tea.KeyCtrlT:
			return m, m.background(m.act.MicTest)
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) != "" && m.act.Submit != nil {
				m.act.Submit(text)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) background(fn func()) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := headerStyle.Render(fmt.Sprintf("Delta  screen %d", m.screen))
	help := helpStyle.Render("enter send | ctrl+l listen | ctrl+t mic test | ctrl+c quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		help,
	)
}

// TUI is the full-screen terminal front end.
type TUI struct {
	program *tea.Program
}

func NewTUI(act Actions, screen int) *TUI {
	return &TUI{
		program: tea.NewProgram(newModel(act, screen), tea.WithAltScreen(), tea.WithMouseCellMotion()),
	}
}

// Deliver must not be called from inside the bubbletea update loop; the
// Dispatcher runs it on its own goroutine.
func (t *TUI) Deliver(ev Event) {
	t.program.Send(eventMsg(ev))
}

// Run blocks until the user quits or ctx is done.
func (t *TUI) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, t.program.Quit)
	defer stop()

	_, err := t.program.Run()
	return err
}
