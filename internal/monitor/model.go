// Package monitor is an interactive serial console for watching a board by
// hand after an upload.
package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/flashwatch/internal/ui"
)

// Source is a connected serial stream.
type Source interface {
	DataChan() <-chan string
	Write(data []byte) error
	Connected() bool
	Disconnect()
	PortName() string
	BaudRate() int
}

// dataMsg is sent when data arrives from the serial port.
type dataMsg struct {
	data string
}

// closedMsg is sent when the serial connection ends.
type closedMsg struct{}

func waitForData(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return dataMsg{data: data}
	}
}

type Model struct {
	src      Source
	data     <-chan string
	output   string
	viewport viewport.Model
	follow   bool
	closed   bool
	sendErr  error
	width    int
	height   int
}

// New returns a model reading from a connected source.
func New(src Source) Model {
	return Model{
		src:      src,
		data:     src.DataChan(),
		viewport: viewport.New(0, 0),
		follow:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForData(m.data)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1) // header + status bar
		m.viewport.SetContent(m.output)
		return m, nil

	case dataMsg:
		m.output += msg.data
		m.viewport.SetContent(m.output)
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, waitForData(m.data)

	case closedMsg:
		m.closed = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, Keys.Quit):
			m.src.Disconnect()
			return m, tea.Quit
		case key.Matches(msg, Keys.Send):
			m.sendErr = m.src.Write([]byte("\n"))
			return m, nil
		case key.Matches(msg, Keys.Clear):
			m.output = ""
			m.viewport.SetContent("")
			return m, nil
		case key.Matches(msg, Keys.Follow):
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Connecting..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	state := ui.SuccessBadge("connected")
	if m.closed || !m.src.Connected() {
		state = ui.ErrorBadge("disconnected")
	}
	title := ui.BoldStyle.Render(fmt.Sprintf("%s @ %d", m.src.PortName(), m.src.BaudRate()))
	header := title + " " + state
	if m.sendErr != nil {
		header += " " + ui.WarnStyle.Render("send: "+m.sendErr.Error())
	}
	return header
}

func (m Model) renderStatusBar() string {
	var parts []string
	for _, kb := range Keys.ShortHelp() {
		desc := kb.Help().Desc
		if kb.Help().Key == "f" && m.follow {
			desc += " (on)"
		}
		parts = append(parts, ui.StatusKey(kb.Help().Key, desc))
	}
	return ui.StatusBarStyle.Width(m.width).Render(strings.Join(parts, "  "))
}

// Run shows the console until the user quits. src must already be connected.
func Run(src Source) error {
	p := tea.NewProgram(New(src), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
