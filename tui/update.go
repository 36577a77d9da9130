package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		case "tab":
			m.activeTab = (m.activeTab + 1) % 3
			m.logScroll = 0
		case "1", "2":
			idx := int(msg.String()[0] - '1')
			if idx < len(m.theaters) {
				m.selectedArm = idx
				m.logScroll = 0
			}
		case "j", "down":
			if m.activeTab != 0 {
				m.logScroll++
			}
		case "k", "up":
			if m.logScroll > 0 {
				m.logScroll--
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case RefreshMsg:
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, nil
		}
		m.loadErr = nil
		m.theaters = msg.Theaters
		m.metrics = msg.Metrics
		m.lastRefresh = time.Now()
		if m.selectedArm >= len(m.theaters) {
			m.selectedArm = 0
		}
		return m, nil
	}

	return m, nil
}
