// Package tui renders a live terminal view of one user's fasts.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/domain/fast"
)

type styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Active  lipgloss.Style
	Overdue lipgloss.Style
	Muted   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1),
		Label:   lipgloss.NewStyle().Bold(true),
		Active:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Overdue: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
	}
}

// Model is the bubbletea model for the watch view.
type Model struct {
	userID   string
	updates  <-chan fast.State
	catalog  fast.Catalog
	clock    clock.Clock
	progress progress.Model
	styles   styles

	state    fast.State
	hasState bool
	closed   bool
	now      time.Time
}

// New creates a watch model fed by updates.
func New(userID string, updates <-chan fast.State, catalog fast.Catalog, clk clock.Clock) Model {
	if clk == nil {
		clk = clock.System{}
	}
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40
	return Model{
		userID:   userID,
		updates:  updates,
		catalog:  catalog,
		clock:    clk,
		progress: p,
		styles:   defaultStyles(),
		now:      clk.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-4, 10), 80)

	case StateMsg:
		m.state = fast.State(msg)
		m.hasState = true
		m.now = m.clock.Now()
		return m, waitForState(m.updates)

	case ClosedMsg:
		m.closed = true
		return m, tea.Quit

	case TickMsg:
		m.now = m.clock.Now()
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("fastwatch · "+m.userID) + "\n\n")

	switch {
	case !m.hasState:
		b.WriteString(m.styles.Muted.Render("Loading fasts...") + "\n")
	case m.state.Active == nil:
		b.WriteString("No active fast.\n")
	default:
		b.WriteString(m.renderActive(*m.state.Active))
	}

	if m.hasState {
		completed := 0
		for _, s := range m.state.Sessions {
			if s.Status == fast.StatusCompleted {
				completed++
			}
		}
		fmt.Fprintf(&b, "\n%s %d fasts, %d completed\n", m.styles.Label.Render("History:"), len(m.state.Sessions), completed)
	}
	if m.closed {
		b.WriteString(m.styles.Muted.Render("Observation closed.") + "\n")
	}
	b.WriteString("\n" + m.styles.Muted.Render("q: quit") + "\n")
	return b.String()
}

func (m Model) renderActive(s fast.Session) string {
	var b strings.Builder
	protocolName := "none"
	if s.Protocol != nil && *s.Protocol != "" {
		protocolName = *s.Protocol
	}

	elapsed := m.now.Sub(s.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("Active:"), m.styles.Active.Render(protocolName))
	fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("Started:"), s.StartTime.Local().Format("Mon 15:04"))
	fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("Elapsed:"), formatDuration(elapsed))

	target, ok := fast.Target(s, m.catalog)
	if !ok {
		b.WriteString(m.styles.Muted.Render("Open-ended fast, no target.") + "\n")
		return b.String()
	}

	ratio := float64(elapsed) / float64(target)
	fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("Target:"), formatDuration(target))
	b.WriteString(m.progress.ViewAs(min(ratio, 1)) + "\n")
	if remaining := target - elapsed; remaining > 0 {
		fmt.Fprintf(&b, "%s remaining\n", formatDuration(remaining))
	} else {
		b.WriteString(m.styles.Overdue.Render(fmt.Sprintf("Target reached %s ago", formatDuration(-remaining))) + "\n")
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// Run shows the watch view until the user quits or ctx ends.
func Run(ctx context.Context, userID string, updates <-chan fast.State, catalog fast.Catalog, clk clock.Clock) error {
	p := tea.NewProgram(New(userID, updates, catalog, clk), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch view: %w", err)
	}
	return nil
}
