package domain

import "time"

// Retention caps for per-theater collections; oldest entries are evicted on overflow
const (
	MaxLogEntries  = 100
	MaxReflections = 50
)

// MaxGap is the upper bound of the priority-gap scale
const MaxGap = 5

// LogEntry is an immutable record of one action taken on a theater
type LogEntry struct {
	ID          string    `json:"id"`
	Arm         ArmType   `json:"arm"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Details     string    `json:"details,omitempty"`
	DurationMin int       `json:"duration_min,omitempty"`
}

// ActionItem is a candidate "next best action" competing to be a theater's
// current focus. Score and StaleDays are derived projections: they are
// recomputed from Gap and LastUpdated at read time and never trusted as
// stored state.
type ActionItem struct {
	ID                    string    `json:"id"`
	Arm                   ArmType   `json:"arm"`
	Title                 string    `json:"title"`
	Description           string    `json:"description,omitempty"`
	Score                 int       `json:"score"`
	StaleDays             float64   `json:"stale_days"`
	Gap                   int       `json:"gap"`
	HasEarlyProgressBonus bool      `json:"has_early_progress_bonus"`
	IsManuallySelected    bool      `json:"is_manually_selected"`
	IsLocked              bool      `json:"is_locked"`
	CreatedAt             time.Time `json:"created_at"`
	LastUpdated           time.Time `json:"last_updated"`
}

// Pinned reports whether the item is a manual selection that overrides
// automatic ranking
func (a ActionItem) Pinned() bool {
	return a.IsLocked && a.IsManuallySelected
}

// Theater is a point-in-time snapshot of one track
type Theater struct {
	Arm              ArmType      `json:"arm"`
	Status           StatusType   `json:"status"`
	CurrentItemID    string       `json:"current_item_id,omitempty"`
	Queue            []ActionItem `json:"queue"`
	Logs             []LogEntry   `json:"logs"` // newest first
	TotalProgress    int          `json:"total_progress"`
	EnergyAllocation int          `json:"energy_allocation"`
	LastActivity     time.Time    `json:"last_activity"`
}

// CurrentItem resolves the theater's current item against its queue, or nil
// when nothing is selected
func (t *Theater) CurrentItem() *ActionItem {
	if t.CurrentItemID == "" {
		return nil
	}
	for i := range t.Queue {
		if t.Queue[i].ID == t.CurrentItemID {
			return &t.Queue[i]
		}
	}
	return nil
}

// GlobalMetrics is the cross-theater aggregate
type GlobalMetrics struct {
	CombinedProgress int       `json:"combined_progress"`
	EnergyIBM        int       `json:"energy_ibm"`
	EnergyCS         int       `json:"energy_cs"`
	OverloadRisk     int       `json:"overload_risk"`
	LastSync         time.Time `json:"last_sync"`
}

// Reflection is an arm-scoped evidence note
type Reflection struct {
	ID        string    `json:"id"`
	Arm       ArmType   `json:"arm"`
	Timestamp time.Time `json:"timestamp"`
	Evidence  string    `json:"evidence"`
	Context   string    `json:"context,omitempty"`
}
