package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/scoring"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

// TheaterResponse is the API response for one theater
type TheaterResponse struct {
	Arm              string              `json:"arm"`
	Status           string              `json:"status"`
	CurrentItem      *domain.ActionItem  `json:"current_item,omitempty"`
	RankedQueue      []domain.ActionItem `json:"ranked_queue"`
	Logs             []domain.LogEntry   `json:"logs"`
	TotalProgress    int                 `json:"total_progress"`
	EnergyAllocation int                 `json:"energy_allocation"`
	LastActivity     string              `json:"last_activity"`
}

// StatusResponse is the API response for the condensed dashboard header
type StatusResponse struct {
	Theaters     []TheaterSummary `json:"theaters"`
	OverloadRisk int              `json:"overload_risk"`
	LastSync     string           `json:"last_sync"`
}

// TheaterSummary is one theater's line in the status response
type TheaterSummary struct {
	Arm           string `json:"arm"`
	Status        string `json:"status"`
	CurrentTitle  string `json:"current_title,omitempty"`
	QueueSize     int    `json:"queue_size"`
	TotalProgress int    `json:"total_progress"`
}

// AddLogRequest is the payload for creating a log entry
type AddLogRequest struct {
	Action      string `json:"action"`
	Details     string `json:"details"`
	DurationMin int    `json:"duration_min"`
}

// AddItemRequest is the payload for creating an action item
type AddItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Gap         int    `json:"gap"`
	EarlyBonus  bool   `json:"early_bonus"`
}

// AddReflectionRequest is the payload for creating a reflection
type AddReflectionRequest struct {
	Evidence string `json:"evidence"`
	Context  string `json:"context"`
}

func theaterToResponse(t *domain.Theater, now time.Time) TheaterResponse {
	resp := TheaterResponse{
		Arm:              string(t.Arm),
		Status:           string(t.Status),
		RankedQueue:      scoring.Rank(t.Queue, now),
		Logs:             t.Logs,
		TotalProgress:    t.TotalProgress,
		EnergyAllocation: t.EnergyAllocation,
		LastActivity:     t.LastActivity.Format(time.RFC3339),
	}
	if resp.RankedQueue == nil {
		resp.RankedQueue = []domain.ActionItem{}
	}
	if resp.Logs == nil {
		resp.Logs = []domain.LogEntry{}
	}
	if current := t.CurrentItem(); current != nil {
		item := *current
		item.Score = scoring.Score(item, now)
		item.StaleDays = scoring.StaleDays(item.LastUpdated, now)
		resp.CurrentItem = &item
	}
	return resp
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		theaters, err := s.store.Theaters()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		metrics, err := s.store.Metrics()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		now := time.Now()
		resp := StatusResponse{
			OverloadRisk: metrics.OverloadRisk,
			LastSync:     metrics.LastSync.Format(time.RFC3339),
		}
		for _, t := range theaters {
			summary := TheaterSummary{
				Arm:           string(t.Arm),
				Status:        string(t.Status),
				QueueSize:     len(t.Queue),
				TotalProgress: t.TotalProgress,
			}
			if top := scoring.Top(t.Queue, now); top != nil {
				summary.CurrentTitle = top.Title
			}
			resp.Theaters = append(resp.Theaters, summary)
		}

		writeJSON(w, resp)
	}
}

func (s *Server) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		metrics, err := s.store.Metrics()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, metrics)
	}
}

func (s *Server) listTheatersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		theaters, err := s.store.Theaters()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		now := time.Now()
		responses := make([]TheaterResponse, len(theaters))
		for i, t := range theaters {
			responses[i] = theaterToResponse(t, now)
		}

		writeJSON(w, responses)
	}
}

// theaterDispatchHandler routes /api/theaters/{arm}[/...] subpaths
func (s *Server) theaterDispatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/theaters/")
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			writeError(w, http.StatusBadRequest, "arm required")
			return
		}

		arm, err := domain.ParseArm(parts[0])
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		switch {
		case len(parts) == 1:
			s.getTheater(w, r, arm)
		case len(parts) == 2 && parts[1] == "logs":
			s.theaterLogs(w, r, arm)
		case len(parts) == 2 && parts[1] == "items":
			s.theaterItems(w, r, arm)
		case len(parts) == 4 && parts[1] == "items" && parts[3] == "select":
			s.selectItem(w, r, arm, parts[2])
		case len(parts) == 2 && parts[1] == "auto":
			s.autoMode(w, r, arm)
		case len(parts) == 2 && parts[1] == "reflections":
			s.theaterReflections(w, r, arm)
		case len(parts) == 2 && parts[1] == "energy":
			s.setPercent(w, r, arm, s.store.SetEnergyAllocation)
		case len(parts) == 2 && parts[1] == "progress":
			s.setPercent(w, r, arm, s.store.SetProgress)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	}
}

func (s *Server) getTheater(w http.ResponseWriter, r *http.Request, arm domain.ArmType) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	t, err := s.store.Theater(arm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, theaterToResponse(t, time.Now()))
}

func (s *Server) theaterLogs(w http.ResponseWriter, r *http.Request, arm domain.ArmType) {
	switch r.Method {
	case http.MethodGet:
		logs, err := s.store.Logs(arm)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if logs == nil {
			logs = []domain.LogEntry{}
		}
		writeJSON(w, logs)

	case http.MethodPost:
		var req AddLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Action == "" {
			writeError(w, http.StatusBadRequest, "action required")
			return
		}
		if req.DurationMin < 0 {
			writeError(w, http.StatusBadRequest, "duration must be non-negative")
			return
		}

		entry, err := s.store.AddLog(arm, req.Action, req.Details, req.DurationMin)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.recomputeNow()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, entry)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) theaterItems(w http.ResponseWriter, r *http.Request, arm domain.ArmType) {
	switch r.Method {
	case http.MethodGet:
		queue, err := s.store.Queue(arm)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, scoring.Rank(queue, time.Now()))

	case http.MethodPost:
		var req AddItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "title required")
			return
		}
		if req.Gap < 0 || req.Gap > domain.MaxGap {
			writeError(w, http.StatusBadRequest, "gap must be 0-5")
			return
		}

		item, err := s.store.AddItem(arm, req.Title, req.Description, req.Gap, req.EarlyBonus)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.recomputeNow()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, item)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) selectItem(w http.ResponseWriter, r *http.Request, arm domain.ArmType, itemID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.store.SelectItem(arm, itemID, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recomputeNow()
	writeJSON(w, map[string]string{"status": "selected"})
}

func (s *Server) autoMode(w http.ResponseWriter, r *http.Request, arm domain.ArmType) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.store.ClearManualSelection(arm); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recomputeNow()
	writeJSON(w, map[string]string{"status": "auto"})
}

func (s *Server) theaterReflections(w http.ResponseWriter, r *http.Request, arm domain.ArmType) {
	switch r.Method {
	case http.MethodGet:
		reflections, err := s.store.Reflections(arm)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if reflections == nil {
			reflections = []domain.Reflection{}
		}
		writeJSON(w, reflections)

	case http.MethodPost:
		var req AddReflectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Evidence == "" {
			writeError(w, http.StatusBadRequest, "evidence required")
			return
		}

		reflection, err := s.store.AddReflection(arm, req.Evidence, req.Context)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, reflection)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// SetPercentRequest is the payload for energy and progress updates
type SetPercentRequest struct {
	Value int `json:"value"`
}

func (s *Server) setPercent(w http.ResponseWriter, r *http.Request, arm domain.ArmType, set func(domain.ArmType, int) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SetPercentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Value < 0 || req.Value > 100 {
		writeError(w, http.StatusBadRequest, "value must be 0-100")
		return
	}

	if err := set(arm, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recomputeNow()
	writeJSON(w, map[string]int{"value": req.Value})
}

func (s *Server) recomputeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		result, err := s.engine.Recompute(time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, result.Metrics)
	}
}

// recomputeNow runs a recompute pass after a mutation so derived state and
// live clients catch up without waiting for the next tick
func (s *Server) recomputeNow() {
	if _, err := s.engine.Recompute(time.Now()); err != nil {
		s.log.Error().Err(err).Msg("post-mutation recompute failed")
	}
}
