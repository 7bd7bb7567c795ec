// Package tui renders the live tracker in a terminal UI.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/output"
)

// RefreshInterval is how often the view re-reads the tracker.
const RefreshInterval = 250 * time.Millisecond

// Source is the tracker state the UI reads and the clear action it may take.
type Source interface {
	Active() (domain.ActiveSession, bool)
	Sessions(by history.SortBy) []domain.CompletedSession
	Detections() []domain.DetectionEvent
	ClearSessions(ctx context.Context) error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	baseStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

type refreshMsg time.Time

type clearedMsg struct{ err error }

// Model is the bubbletea model for the ui command
type Model struct {
	source     Source
	label      string
	sortBy     history.SortBy
	table      table.Model
	active     domain.ActiveSession
	isActive   bool
	sessions   []domain.CompletedSession
	detections int
	confirming bool
	status     string
	now        func() time.Time
	width      int
}

// New creates a model reading from source. label names the signal input.
func New(source Source, label string, sortBy history.SortBy) Model {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Duration", Width: 10},
		{Title: "Start", Width: 16},
		{Title: "End", Width: 16},
		{Title: "Ended", Width: 16},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	if sortBy == "" {
		sortBy = history.SortRecent
	}
	m := Model{source: source, label: label, sortBy: sortBy, table: t, now: time.Now}
	m.refresh()
	return m
}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return refreshAfter(RefreshInterval)
}

func (m *Model) refresh() {
	m.active, m.isActive = m.source.Active()
	m.sessions = m.source.Sessions(m.sortBy)
	m.detections = len(m.source.Detections())
	m.table.SetRows(rows(m.sessions, m.now()))
}

func rows(sessions []domain.CompletedSession, now time.Time) []table.Row {
	out := make([]table.Row, 0, len(sessions))
	for _, r := range output.SessionRows(sessions, now) {
		out = append(out, table.Row(r))
	}
	return out
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, refreshAfter(RefreshInterval)

	case clearedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("clear failed: %v", msg.err)
		} else {
			m.status = "history cleared"
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.confirming {
			m.confirming = false
			if msg.String() == "y" || msg.String() == "Y" {
				source := m.source
				return m, func() tea.Msg {
					return clearedMsg{err: source.ClearSessions(context.Background())}
				}
			}
			m.status = "clear cancelled"
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			if m.sortBy == history.SortRecent {
				m.sortBy = history.SortDuration
			} else {
				m.sortBy = history.SortRecent
			}
			m.status = "sorted by " + string(m.sortBy)
			m.refresh()
			return m, nil
		case "c":
			m.confirming = true
			m.status = ""
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("presence"))
	b.WriteString(idleStyle.Render("  " + m.label))
	b.WriteString("\n\n")

	if m.isActive {
		b.WriteString(activeStyle.Render("● Active  " + domain.FormatDuration(m.active.Elapsed.Seconds())))
		b.WriteString(idleStyle.Render("  since " + domain.FormatClock(m.active.StartTime)))
	} else {
		b.WriteString(idleStyle.Render("○ Inactive"))
	}
	b.WriteString("\n\n")

	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d sessions · sorted by %s · %d detections\n",
		len(m.sessions), m.sortBy, m.detections))

	switch {
	case m.confirming:
		b.WriteString(warnStyle.Render("Clear all sessions? This cannot be undone. (y/N)"))
	case m.status != "":
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s: toggle sort · c: clear history · q: quit"))
	return b.String()
}

// SortBy returns the current sort order
func (m Model) SortBy() history.SortBy { return m.sortBy }

// Confirming reports whether a clear is awaiting confirmation.
func (m Model) Confirming() bool { return m.confirming }
