// Package ui renders the sprint board: a table of the current sprint's
// tickets with per-state point totals.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rallyterm/internal/rally"
	"rallyterm/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			MarginTop(1)
)

type loadedMsg struct {
	summary *service.SprintSummary
}

type errorMsg struct {
	err error
}

// Model is the TUI model for the sprint board.
type Model struct {
	svc           *service.Service
	iterationName string

	spinner spinner.Model
	table   table.Model
	summary *service.SprintSummary
	loading bool
	width   int
	height  int

	err error
}

// NewModel creates a sprint board model. An empty iteration name means the
// current iteration.
func NewModel(svc *service.Service, iterationName string) Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	columns := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Name", Width: 40},
		{Title: "State", Width: 12},
		{Title: "Owner", Width: 18},
		{Title: "Points", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("240")).
		Bold(true)
	t.SetStyles(styles)

	return Model{
		svc:           svc,
		iterationName: iterationName,
		spinner:       s,
		table:         t,
		loading:       true,
	}
}

func (m Model) loadSummary() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.svc.GetSprintSummary(context.Background(), m.iterationName)
		if err != nil {
			return errorMsg{err: err}
		}
		return loadedMsg{summary: summary}
	}
}

// Init starts the spinner and kicks off the sprint fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadSummary())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.summary = msg.summary
		m.loading = false
		m.populateTable()
		return m, nil

	case errorMsg:
		m.err = msg.err
		m.loading = false
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Leave room for the header and the summary lines below the table.
		if m.height > 10 {
			m.table.SetHeight(m.height - 9)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	if m.loading {
		m.spinner, cmd = m.spinner.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// View renders the board.
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	if m.loading {
		return fmt.Sprintf("%s Loading sprint board...", m.spinner.View())
	}

	var s strings.Builder

	iteration := m.summary.Iteration
	s.WriteString(titleStyle.Render(fmt.Sprintf("Sprint: %s", iteration.Name)))
	s.WriteString("\n")

	if !iteration.StartDate.IsZero() {
		s.WriteString(infoStyle.Render(fmt.Sprintf("%s - %s (%s)",
			iteration.StartDate.Format("2006-01-02"),
			iteration.EndDate.Format("2006-01-02"),
			iteration.State)))
		s.WriteString("\n")
	}

	s.WriteString(m.table.View())
	s.WriteString("\n")

	s.WriteString(summaryStyle.Render(fmt.Sprintf("%d tickets, %.1f points (%.1f accepted)",
		len(m.summary.Tickets), m.summary.TotalPoints, m.summary.AcceptedPoints)))
	s.WriteString("\n")
	s.WriteString(infoStyle.Render(m.stateBreakdown()))
	s.WriteString("\n\n")
	s.WriteString(infoStyle.Render("Press 'q' to quit, arrow keys to navigate"))

	return s.String()
}

func (m *Model) populateTable() {
	tickets := append([]rally.Ticket{}, m.summary.Tickets...)
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].FormattedID < tickets[j].FormattedID
	})

	rows := make([]table.Row, 0, len(tickets))
	for _, ticket := range tickets {
		rows = append(rows, table.Row{
			ticket.FormattedID,
			ticket.Name,
			ticket.State,
			ticket.Owner,
			formatPoints(ticket.Points),
		})
	}
	m.table.SetRows(rows)
}

func (m Model) stateBreakdown() string {
	states := make([]string, 0, len(m.summary.PointsByState))
	for state := range m.summary.PointsByState {
		states = append(states, state)
	}
	sort.Strings(states)

	parts := make([]string, 0, len(states))
	for _, state := range states {
		parts = append(parts, fmt.Sprintf("%s: %s", state, formatPoints(m.summary.PointsByState[state])))
	}

	return strings.Join(parts, "  |  ")
}

func formatPoints(points float64) string {
	if points == float64(int(points)) {
		return fmt.Sprintf("%d", int(points))
	}
	return fmt.Sprintf("%.1f", points)
}
