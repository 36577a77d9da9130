package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/scoring"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

// refreshInterval is how often the dashboard re-reads the store
const refreshInterval = 5 * time.Second

// Model is the TUI application model
type Model struct {
	store *store.Store

	// Data
	theaters []TheaterView
	metrics  domain.GlobalMetrics

	// UI state
	width       int
	height      int
	activeTab   int
	selectedArm int
	logScroll   int

	// Refresh
	lastRefresh time.Time
	loadErr     error
}

// TheaterView is a theater snapshot prepared for rendering
type TheaterView struct {
	Arm          domain.ArmType
	Status       domain.StatusType
	Current      *domain.ActionItem
	Queue        []domain.ActionItem
	Logs         []domain.LogEntry
	Progress     int
	Energy       int
	LastActivity time.Time
}

// NewModel creates a new TUI model backed by the given store
func NewModel(st *store.Store) Model {
	return Model{store: st}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		tickCmd(),
	)
}

// TickMsg triggers a refresh
type TickMsg time.Time

// RefreshMsg carries freshly loaded dashboard data
type RefreshMsg struct {
	Theaters []TheaterView
	Metrics  domain.GlobalMetrics
	Err      error
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		return loadSnapshot(st, time.Now())
	}
}

func loadSnapshot(st *store.Store, now time.Time) RefreshMsg {
	theaters, err := st.Theaters()
	if err != nil {
		return RefreshMsg{Err: err}
	}
	metrics, err := st.Metrics()
	if err != nil {
		return RefreshMsg{Err: err}
	}

	views := make([]TheaterView, 0, len(theaters))
	for _, t := range theaters {
		view := TheaterView{
			Arm:          t.Arm,
			Status:       t.Status,
			Queue:        scoring.Rank(t.Queue, now),
			Logs:         t.Logs,
			Progress:     t.TotalProgress,
			Energy:       t.EnergyAllocation,
			LastActivity: t.LastActivity,
		}
		if current := t.CurrentItem(); current != nil {
			item := *current
			item.Score = scoring.Score(item, now)
			item.StaleDays = scoring.StaleDays(item.LastUpdated, now)
			view.Current = &item
		}
		views = append(views, view)
	}

	return RefreshMsg{Theaters: views, Metrics: *metrics}
}
