// Package export builds portable snapshots of the full application state,
// with scores and staleness freshly derived so the exported queue reflects
// what the dashboard would show.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/scoring"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

// Snapshot is the full exportable application state
type Snapshot struct {
	ExportedAt  time.Time                              `json:"exported_at" yaml:"exported_at"`
	Theaters    []TheaterSnapshot                      `json:"theaters" yaml:"theaters"`
	Metrics     domain.GlobalMetrics                   `json:"metrics" yaml:"metrics"`
	Reflections map[domain.ArmType][]domain.Reflection `json:"reflections" yaml:"reflections"`
}

// TheaterSnapshot is one theater with its queue ranked and scored
type TheaterSnapshot struct {
	Arm              domain.ArmType      `json:"arm" yaml:"arm"`
	Status           domain.StatusType   `json:"status" yaml:"status"`
	TotalProgress    int                 `json:"total_progress" yaml:"total_progress"`
	EnergyAllocation int                 `json:"energy_allocation" yaml:"energy_allocation"`
	LastActivity     time.Time           `json:"last_activity" yaml:"last_activity"`
	CurrentItem      *domain.ActionItem  `json:"current_item,omitempty" yaml:"current_item,omitempty"`
	RankedQueue      []domain.ActionItem `json:"ranked_queue" yaml:"ranked_queue"`
	Logs             []domain.LogEntry   `json:"logs" yaml:"logs"`
}

// Build assembles a snapshot from the store at the given instant
func Build(st *store.Store, now time.Time) (*Snapshot, error) {
	theaters, err := st.Theaters()
	if err != nil {
		return nil, err
	}
	metrics, err := st.Metrics()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ExportedAt:  now,
		Metrics:     *metrics,
		Reflections: make(map[domain.ArmType][]domain.Reflection, len(domain.Arms)),
	}

	for _, th := range theaters {
		ts := TheaterSnapshot{
			Arm:              th.Arm,
			Status:           th.Status,
			TotalProgress:    th.TotalProgress,
			EnergyAllocation: th.EnergyAllocation,
			LastActivity:     th.LastActivity,
			RankedQueue:      scoring.Rank(th.Queue, now),
			Logs:             th.Logs,
		}
		if current := th.CurrentItem(); current != nil {
			item := *current
			item.Score = scoring.Score(item, now)
			item.StaleDays = scoring.StaleDays(item.LastUpdated, now)
			ts.CurrentItem = &item
		}
		snap.Theaters = append(snap.Theaters, ts)

		reflections, err := st.Reflections(th.Arm)
		if err != nil {
			return nil, err
		}
		snap.Reflections[th.Arm] = reflections
	}

	return snap, nil
}

// WriteJSON writes the snapshot as indented JSON
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteYAML writes the snapshot as YAML
func (s *Snapshot) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(s)
}

// Write writes the snapshot in the named format ("json" or "yaml")
func (s *Snapshot) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		return s.WriteJSON(w)
	case "yaml", "yml":
		return s.WriteYAML(w)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
