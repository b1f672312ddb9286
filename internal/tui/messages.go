package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rpggio/fastwatch/internal/domain/fast"
)

type (
	// StateMsg carries a reconciled state from the observation.
	StateMsg fast.State

	// ClosedMsg is sent once the observation stops delivering states.
	ClosedMsg struct{}

	// TickMsg refreshes the elapsed time between state changes.
	TickMsg time.Time
)

// waitForState blocks on the next observation update.
func waitForState(updates <-chan fast.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return ClosedMsg{}
		}
		return StateMsg(st)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
