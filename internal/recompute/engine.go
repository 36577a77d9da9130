// Package recompute orchestrates the periodic derivation pass: it pulls
// theater snapshots from the store, runs the pure status and scoring
// functions, writes derived values back, and raises notifications on
// meaningful transitions. The pass is idempotent; running it twice on the
// same inputs yields the same stored state.
package recompute

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/notify"
	"github.com/6ofHertz/aelpher-control/internal/scoring"
	"github.com/6ofHertz/aelpher-control/internal/statemachine"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

// EventSink receives recompute lifecycle events for live subscribers
type EventSink func(eventType string, data any)

// Result is the outcome of one recompute pass
type Result struct {
	Theaters []*domain.Theater
	Metrics  domain.GlobalMetrics
}

// Engine runs recompute passes against the store
type Engine struct {
	store         *store.Store
	notifier      notify.Notifier
	events        EventSink
	riskThreshold int
	log           zerolog.Logger
}

// New creates an Engine. A nil notifier disables alerts; a nil sink disables
// event broadcasting.
func New(st *store.Store, notifier notify.Notifier, logger zerolog.Logger) *Engine {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Engine{
		store:         st,
		notifier:      notifier,
		riskThreshold: 70,
		log:           logger,
	}
}

// SetEventSink registers a sink for recompute events
func (e *Engine) SetEventSink(sink EventSink) {
	e.events = sink
}

// SetRiskThreshold sets the overload-risk level that triggers an alert when
// crossed from below
func (e *Engine) SetRiskThreshold(threshold int) {
	e.riskThreshold = threshold
}

// Recompute runs one full derivation pass at the given instant
func (e *Engine) Recompute(now time.Time) (*Result, error) {
	prev, err := e.store.Metrics()
	if err != nil {
		return nil, fmt.Errorf("reading metrics: %w", err)
	}

	theaters := make([]*domain.Theater, 0, len(domain.Arms))
	for _, arm := range domain.Arms {
		th, err := e.recomputeTheater(arm, now)
		if err != nil {
			return nil, err
		}
		theaters = append(theaters, th)
	}

	ibm, cs := theaters[0], theaters[1]
	metrics := domain.GlobalMetrics{
		CombinedProgress: int(math.Round(float64(ibm.TotalProgress+cs.TotalProgress) / 2)),
		EnergyIBM:        ibm.EnergyAllocation,
		EnergyCS:         cs.EnergyAllocation,
		OverloadRisk:     scoring.OverloadRisk(*ibm, *cs, now),
		LastSync:         now,
	}
	if err := e.store.SaveMetrics(metrics); err != nil {
		return nil, fmt.Errorf("saving metrics: %w", err)
	}

	if prev.OverloadRisk < e.riskThreshold && metrics.OverloadRisk >= e.riskThreshold {
		e.notifier.Send(notify.Notification{
			Title:   "Overload risk high",
			Message: fmt.Sprintf("Overload risk reached %d%% (threshold %d%%)", metrics.OverloadRisk, e.riskThreshold),
			Type:    notify.NotifyWarning,
		})
	}

	result := &Result{Theaters: theaters, Metrics: metrics}
	e.emit("recompute", result)

	e.log.Debug().
		Str("ibm_status", string(ibm.Status)).
		Str("cs_status", string(cs.Status)).
		Int("overload_risk", metrics.OverloadRisk).
		Msg("recompute pass complete")

	return result, nil
}

func (e *Engine) recomputeTheater(arm domain.ArmType, now time.Time) (*domain.Theater, error) {
	th, err := e.store.Theater(arm)
	if err != nil {
		return nil, fmt.Errorf("loading theater %s: %w", arm, err)
	}

	status := statemachine.DeriveStatus(th.Logs, now)
	if status != th.Status {
		if err := e.store.SetStatus(arm, status); err != nil {
			return nil, err
		}
		if status == domain.StatusBlocked {
			e.notifier.Send(notify.Notification{
				Title:   "Theater blocked",
				Message: fmt.Sprintf("Theater %s entered blocked state", arm),
				Type:    notify.NotifyError,
				Arm:     string(arm),
			})
		}
		e.log.Info().
			Str("arm", string(arm)).
			Str("from", string(th.Status)).
			Str("to", string(status)).
			Msg("theater status changed")
		th.Status = status
	}

	// Re-select the top item unless the user has pinned the current one
	top := scoring.Top(th.Queue, now)
	current := th.CurrentItem()
	if top != nil && (current == nil || !current.IsLocked) && th.CurrentItemID != top.ID {
		if err := e.store.SelectItem(arm, top.ID, false); err != nil {
			return nil, err
		}
		th.CurrentItemID = top.ID
	}

	return th, nil
}

// Digest sends a summary notification covering both theaters
func (e *Engine) Digest(now time.Time) error {
	theaters, err := e.store.Theaters()
	if err != nil {
		return err
	}
	metrics, err := e.store.Metrics()
	if err != nil {
		return err
	}

	msg := ""
	for _, th := range theaters {
		line := fmt.Sprintf("%s: %s, %d%% progress, %d queued", th.Arm, th.Status, th.TotalProgress, len(th.Queue))
		if top := scoring.Top(th.Queue, now); top != nil {
			line += fmt.Sprintf(", next: %s (score %d)", top.Title, top.Score)
		}
		msg += line + "\n"
	}
	msg += fmt.Sprintf("overload risk: %d%%", metrics.OverloadRisk)

	return e.notifier.Send(notify.Notification{
		Title:   "Daily digest",
		Message: msg,
		Type:    notify.NotifyInfo,
	})
}

func (e *Engine) emit(eventType string, data any) {
	if e.events != nil {
		e.events(eventType, data)
	}
}
