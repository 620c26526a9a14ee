// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/sharedesk/share"
)

// refreshInterval is how often the status line is redrawn.
const refreshInterval = 250 * time.Millisecond

// Session is the part of *share.Session the console uses.
type Session interface {
	Status() share.Status
	Enqueue(command share.Command) error
}

type refreshMsg struct{}

// sessionDoneMsg reports that the session's Run returned.
type sessionDoneMsg struct{ err error }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1)
)

// Model is the bubbletea model of the console.
type Model struct {
	session    Session
	keys       KeyMap
	status     share.Status
	forwarding bool
	last       string
	logLine    string
	logLevel   slog.Level
	fatal      error
	finished   bool
	width      int
}

// NewModel returns a console for session with forwarding enabled.
func NewModel(session Session) Model {
	return Model{
		session:    session,
		keys:       DefaultKeyMap,
		status:     session.Status(),
		forwarding: true,
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return refresh()
}

// Update handles keys, refresh ticks, log records, and session end.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.status = m.session.Status()
		if m.finished {
			return m, nil
		}
		return m, refresh()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case logRecordMsg:
		m.logLine = msg.Summary
		m.logLevel = msg.Level
		return m, nil

	case sessionDoneMsg:
		m.finished = true
		m.status = m.session.Status()
		if msg.err == nil {
			return m, tea.Quit
		}
		// Fatal: keep the notice up until the operator acknowledges it.
		m.fatal = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.finished {
		return m, tea.Quit
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.ToggleForward):
		m.forwarding = !m.forwarding
		return m, nil
	}
	if !m.forwarding {
		return m, nil
	}

	command, ok := keyCommand(msg)
	if !ok {
		return m, nil
	}
	if err := m.session.Enqueue(command); err != nil {
		m.last = fmt.Sprintf("not sent: %s (%v)", command, err)
		return m, nil
	}
	m.last = "sent " + command.String()
	return m, nil
}

// View renders the status area.
func (m Model) View() string {
	var builder strings.Builder

	state := runningStyle.Render("● running")
	if !m.status.Running {
		state = stoppedStyle.Render("■ stopped")
	}
	id := m.status.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(&builder, "%s  %s  session %s  %s\n",
		titleStyle.Render("sharedesk"), m.status.Role, id, state)

	fmt.Fprintf(&builder, "frames %d  %s (avg %d ms)  queued %d\n",
		m.status.FramesDisplayed,
		m.status.DisplayLatency,
		m.status.DisplayLatency.Average.Milliseconds(),
		m.status.QueuedCommands)

	forwarding := "forwarding keys"
	if !m.forwarding {
		forwarding = "forwarding paused"
	}
	if m.last != "" {
		forwarding += ": " + m.last
	}
	builder.WriteString(forwarding + "\n")

	if m.logLine != "" {
		style := warnStyle
		if m.logLevel >= slog.LevelError {
			style = errorStyle
		}
		builder.WriteString(style.Render(m.logLine) + "\n")
	}

	if m.fatal != nil {
		builder.WriteString(noticeStyle.Render("Session stopped\n"+m.fatal.Error()+"\n\npress any key to exit") + "\n")
		return builder.String()
	}

	builder.WriteString(faintStyle.Render(fmt.Sprintf("%s %s · %s %s",
		m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc,
		m.keys.ToggleForward.Help().Key, m.keys.ToggleForward.Help().Desc)))
	return builder.String()
}
