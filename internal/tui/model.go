// Package tui renders the monitor state in the terminal and turns key
// presses into monitor messages.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/srg/hrmon/internal/monitor"
)

// Dispatcher receives user intents. *monitor.Engine implements it.
type Dispatcher interface {
	Dispatch(msg monitor.Msg)
}

// SnapshotMsg delivers a new state to the screen.
type SnapshotMsg struct {
	Snapshot monitor.Snapshot
}

// QuitMsg ends the program.
type QuitMsg struct{}

// Options configures the screen.
type Options struct {
	ASCII bool
}

// Model is the bubbletea model of the monitor screen. It never changes
// monitor state itself; keys become Dispatch calls and the screen follows
// the snapshots it is sent.
type Model struct {
	dispatcher Dispatcher
	snap       monitor.Snapshot
	spinner    spinner.Model
	picker     picker
	sym        symbols

	width    int
	quitting bool
}

// NewModel creates the screen model.
func NewModel(d Dispatcher, initial monitor.Snapshot, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	sym := unicodeSymbols
	if opts.ASCII {
		s.Spinner = spinner.Line
		sym = asciiSymbols
	}
	s.Style = lipgloss.NewStyle().Foreground(colorHeart)

	return Model{
		dispatcher: d,
		snap:       initial,
		spinner:    s,
		sym:        sym,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles keys, snapshots and spinner ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SnapshotMsg:
		m.snap = msg.Snapshot
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.snap.UI.IsPickerOpen {
		switch key {
		case "up", "k":
			m.picker.move(-1, len(m.snap.Devices))
		case "down", "j":
			m.picker.move(1, len(m.snap.Devices))
		case "enter":
			if d, ok := m.picker.selected(m.snap.Devices); ok {
				m.dispatcher.Dispatch(monitor.DeviceSelected{ID: d.ID})
			}
		case "esc", "c":
			m.dispatcher.Dispatch(monitor.ClosePressed{})
		}
		return m, nil
	}

	switch key {
	case "s":
		if m.snap.Connected == nil {
			m.picker = picker{}
			m.dispatcher.Dispatch(monitor.SearchPressed{})
		}
	case "d":
		if m.snap.Connected != nil {
			m.dispatcher.Dispatch(monitor.DisconnectPressed{})
		}
	}
	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Heart Rate Monitor"))
	b.WriteString("\n")

	if m.snap.UI.IsLoading {
		b.WriteString(valueStyle.Render(m.spinner.View()))
	} else {
		b.WriteString(valueStyle.Render(m.sym.Heart + " " + m.snap.Reading.DisplayBPM()))
	}
	b.WriteString("\n")

	if c := m.snap.Connected; c != nil {
		b.WriteString(mutedStyle.Render("Connected to " + c.Serial + " (" + c.Address + ")"))
		b.WriteString("\n")
	}

	if m.snap.UI.LastError != "" {
		b.WriteString(errorStyle.Render(m.sym.Error + " " + m.snap.UI.LastError))
		b.WriteString("\n")
	}

	if m.snap.UI.IsPickerOpen {
		b.WriteString("\n")
		b.WriteString(m.picker.view(m.snap.Devices, m.snap.UI.IsScanning, m.spinner.View(), m.sym, m.width))
		b.WriteString("\n")
		return b.String()
	}

	if m.snap.Connected == nil {
		b.WriteString(hintStyle.Render("s: search devices  q: quit"))
	} else {
		b.WriteString(hintStyle.Render("d: disconnect  q: quit"))
	}
	b.WriteString("\n")
	return b.String()
}
