package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/recompute"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	engine := recompute.New(st, nil, zerolog.Nop())
	return NewServer(st, engine, "127.0.0.1:0", zerolog.Nop()), st
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Theaters) != 2 {
		t.Errorf("theaters = %d, want 2", len(resp.Theaters))
	}
}

func TestStatusEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/status", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestGetTheater(t *testing.T) {
	s, st := newTestServer(t)

	if _, err := st.AddLog(domain.ArmIBM, "standup", "", 15); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/theaters/ibm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp TheaterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Arm != "ibm" {
		t.Errorf("arm = %q, want ibm", resp.Arm)
	}
	if len(resp.Logs) != 1 {
		t.Errorf("logs = %d, want 1", len(resp.Logs))
	}
}

func TestGetTheater_UnknownArm(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/theaters/chess", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAddLogEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/cs/logs", AddLogRequest{
		Action:      "finished lab",
		DurationMin: 45,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var entry domain.LogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Arm != domain.ArmCS || entry.Action != "finished lab" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	// Mutation triggers a recompute, which should mark the theater active
	theater, err := st.Theater(domain.ArmCS)
	if err != nil {
		t.Fatal(err)
	}
	if theater.Status != domain.StatusActive {
		t.Errorf("status after log = %s, want active", theater.Status)
	}
}

func TestAddLogEndpoint_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/ibm/logs", AddLogRequest{Action: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing action: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/theaters/ibm/logs", AddLogRequest{
		Action:      "x",
		DurationMin: -1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative duration: status = %d, want 400", rec.Code)
	}
}

func TestAddItemEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/ibm/items", AddItemRequest{
		Title: "close Q3 report",
		Gap:   3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/api/theaters/ibm/items", AddItemRequest{
		Title: "bad gap",
		Gap:   7,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("gap 7: status = %d, want 400", rec.Code)
	}
}

func TestSelectItemEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	item, err := st.AddItem(domain.ArmIBM, "deep work block", "", 2, false)
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/ibm/items/"+item.ID+"/select", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	queue, err := st.Queue(domain.ArmIBM)
	if err != nil {
		t.Fatal(err)
	}
	if !queue[0].IsLocked || !queue[0].IsManuallySelected {
		t.Errorf("item not pinned after select: %+v", queue[0])
	}
}

func TestSelectItemEndpoint_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/ibm/items/no-such-id/select", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAutoModeEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	item, err := st.AddItem(domain.ArmCS, "review notes", "", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SelectItem(domain.ArmCS, item.ID, true); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/cs/auto", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	queue, err := st.Queue(domain.ArmCS)
	if err != nil {
		t.Fatal(err)
	}
	if queue[0].IsLocked || queue[0].IsManuallySelected {
		t.Errorf("lock not cleared: %+v", queue[0])
	}
}

func TestReflectionsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/cs/reflections", AddReflectionRequest{
		Evidence: "passed the practice exam",
		Context:  "week 4",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/theaters/cs/reflections", nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var reflections []domain.Reflection
	if err := json.Unmarshal(rec.Body.Bytes(), &reflections); err != nil {
		t.Fatal(err)
	}
	if len(reflections) != 1 || reflections[0].Evidence != "passed the practice exam" {
		t.Errorf("unexpected reflections: %+v", reflections)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/theaters/cs/reflections", AddReflectionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty evidence: status = %d, want 400", rec.Code)
	}
}

func TestRecomputeEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/recompute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var metrics domain.GlobalMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatal(err)
	}
	// Fresh store: both arms idle, even energy split
	if metrics.OverloadRisk != 20 {
		t.Errorf("risk = %d, want 20", metrics.OverloadRisk)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/recompute", nil)

	rec := doRequest(t, s, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var metrics domain.GlobalMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatal(err)
	}
	if metrics.LastSync.IsZero() {
		t.Error("last sync not set after recompute")
	}
}

func TestSetEnergyEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/ibm/energy", SetPercentRequest{Value: 95})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	theater, err := st.Theater(domain.ArmIBM)
	if err != nil {
		t.Fatal(err)
	}
	if theater.EnergyAllocation != 95 {
		t.Errorf("energy = %d, want 95", theater.EnergyAllocation)
	}

	// Recompute picked up the imbalance: 95 vs 50 crosses the 40-point bar,
	// adding 10 on top of the two idle-status penalties
	metrics, err := st.Metrics()
	if err != nil {
		t.Fatal(err)
	}
	if metrics.OverloadRisk != 30 {
		t.Errorf("risk after imbalance = %d, want 30", metrics.OverloadRisk)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/theaters/ibm/energy", SetPercentRequest{Value: 120})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("value 120: status = %d, want 400", rec.Code)
	}
}

func TestSetProgressEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/theaters/cs/progress", SetPercentRequest{Value: 40})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	theater, err := st.Theater(domain.ArmCS)
	if err != nil {
		t.Fatal(err)
	}
	if theater.TotalProgress != 40 {
		t.Errorf("progress = %d, want 40", theater.TotalProgress)
	}
}

func TestListTheaters(t *testing.T) {
	s, st := newTestServer(t)

	if _, err := st.AddItem(domain.ArmIBM, "a", "", 0, false); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/theaters", nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var resp []TheaterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 {
		t.Fatalf("theaters = %d, want 2", len(resp))
	}
	if len(resp[0].RankedQueue) != 1 {
		t.Errorf("ibm queue = %d, want 1", len(resp[0].RankedQueue))
	}
}
