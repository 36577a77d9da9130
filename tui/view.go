package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/6ofHertz/aelpher-control/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	armTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	pinnedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	riskHighStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	riskMediumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	riskLowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

var tabNames = []string{"Dashboard", "Logs", "Queue"}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Aelpher Control │ Risk: %s │ Progress: %d%% │ Energy: ibm %d%% / cs %d%% ",
		renderRisk(m.metrics.OverloadRisk), m.metrics.CombinedProgress,
		m.metrics.EnergyIBM, m.metrics.EnergyCS)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.loadErr != nil {
		b.WriteString(blockedStyle.Render(" Error: " + m.loadErr.Error()))
		b.WriteString("\n")
	}

	switch m.activeTab {
	case 0:
		for _, t := range m.theaters {
			b.WriteString(sectionStyle.Width(m.width - 2).Render(renderTheater(t)))
			b.WriteString("\n")
		}
	case 1:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderLogs()))
		b.WriteString("\n")
	case 2:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderQueue()))
		b.WriteString("\n")
	}

	var statusBar string
	switch m.activeTab {
	case 0:
		statusBar = " [tab]switch [r]efresh [q]uit "
	default:
		statusBar = " [tab]switch [1/2]arm [j/k]scroll [r]efresh [q]uit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if i == m.activeTab {
			tabs[i] = tabActiveStyle.Render(name)
		} else {
			tabs[i] = tabInactiveStyle.Render(name)
		}
	}
	return " " + strings.Join(tabs, "  ")
}

func renderTheater(t TheaterView) string {
	var b strings.Builder

	b.WriteString(armTitleStyle.Render(strings.ToUpper(string(t.Arm))))
	b.WriteString("  ")
	b.WriteString(renderStatus(t.Status))
	b.WriteString(dimmedStyle.Render(fmt.Sprintf("  last activity %s", renderAge(t))))
	b.WriteString("\n")

	if t.Current != nil {
		line := fmt.Sprintf("▶ %s  [score %d, stale %.1fd]", t.Current.Title, t.Current.Score, t.Current.StaleDays)
		if t.Current.Pinned() {
			b.WriteString(pinnedStyle.Render("📌 " + line))
		} else {
			b.WriteString(line)
		}
	} else {
		b.WriteString(dimmedStyle.Render("▶ no next best action"))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Progress %3d%%  Energy %3d%%  Queue %d  Logs %d",
		t.Progress, t.Energy, len(t.Queue), len(t.Logs)))

	return b.String()
}

func (m Model) renderLogs() string {
	if len(m.theaters) == 0 {
		return "No data yet"
	}
	t := m.theaters[m.selectedArm]

	var b strings.Builder
	b.WriteString(armTitleStyle.Render(fmt.Sprintf("Logs: %s", strings.ToUpper(string(t.Arm)))))
	b.WriteString("\n")

	if len(t.Logs) == 0 {
		b.WriteString(dimmedStyle.Render("No activity logged"))
		return b.String()
	}

	visible := m.visibleRows()
	start := m.logScroll
	if start >= len(t.Logs) {
		start = len(t.Logs) - 1
	}
	end := start + visible
	if end > len(t.Logs) {
		end = len(t.Logs)
	}

	for _, entry := range t.Logs[start:end] {
		age := humanize.Time(entry.Timestamp)
		line := fmt.Sprintf("%-16s %s", age, entry.Action)
		if entry.DurationMin > 0 {
			line += dimmedStyle.Render(fmt.Sprintf(" (%dm)", entry.DurationMin))
		}
		if entry.Details != "" {
			line += dimmedStyle.Render(" — " + entry.Details)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderQueue() string {
	if len(m.theaters) == 0 {
		return "No data yet"
	}
	t := m.theaters[m.selectedArm]

	var b strings.Builder
	b.WriteString(armTitleStyle.Render(fmt.Sprintf("Queue: %s", strings.ToUpper(string(t.Arm)))))
	b.WriteString("\n")

	if len(t.Queue) == 0 {
		b.WriteString(dimmedStyle.Render("Queue is empty"))
		return b.String()
	}

	for i, item := range t.Queue {
		marker := " "
		if item.Pinned() {
			marker = "📌"
		}
		line := fmt.Sprintf("%s %2d. %-40s score %3d  stale %.1fd  gap %d",
			marker, i+1, truncate(item.Title, 40), item.Score, item.StaleDays, item.Gap)
		if item.Pinned() {
			b.WriteString(pinnedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) visibleRows() int {
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}
	return rows
}

func renderStatus(status domain.StatusType) string {
	switch status {
	case domain.StatusActive:
		return activeStyle.Render("● active")
	case domain.StatusWarm:
		return warmStyle.Render("● warm")
	case domain.StatusBlocked:
		return blockedStyle.Render("● blocked")
	default:
		return idleStyle.Render("● idle")
	}
}

func renderRisk(risk int) string {
	label := fmt.Sprintf("%d/100", risk)
	switch {
	case risk >= 70:
		return riskHighStyle.Render(label)
	case risk >= 40:
		return riskMediumStyle.Render(label)
	default:
		return riskLowStyle.Render(label)
	}
}

func renderAge(t TheaterView) string {
	if t.LastActivity.IsZero() {
		return "never"
	}
	return humanize.Time(t.LastActivity)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
