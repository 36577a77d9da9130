package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/6ofHertz/aelpher-control/internal/domain"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := st.AddLog(domain.ArmIBM, "standup", "sprint sync", 15); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddItem(domain.ArmIBM, "low", "", 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddItem(domain.ArmIBM, "high", "", 5, false); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddReflection(domain.ArmCS, "finished module quiz", ""); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestBuild_RanksQueueWithFreshScores(t *testing.T) {
	st := seededStore(t)

	snap, err := Build(st, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if len(snap.Theaters) != 2 {
		t.Fatalf("theaters = %d, want 2", len(snap.Theaters))
	}

	ibm := snap.Theaters[0]
	if ibm.Arm != domain.ArmIBM {
		t.Errorf("theaters[0].Arm = %s, want ibm", ibm.Arm)
	}
	if len(ibm.RankedQueue) != 2 || ibm.RankedQueue[0].Title != "high" {
		t.Errorf("ranked queue not ordered by score: %+v", ibm.RankedQueue)
	}
	if ibm.RankedQueue[0].Score != 50 {
		t.Errorf("top score = %d, want 50", ibm.RankedQueue[0].Score)
	}

	if got := len(snap.Reflections[domain.ArmCS]); got != 1 {
		t.Errorf("cs reflections = %d, want 1", got)
	}
}

func TestSnapshot_WriteJSON(t *testing.T) {
	st := seededStore(t)

	snap, err := Build(st, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := snap.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Theaters) != 2 {
		t.Errorf("decoded theaters = %d, want 2", len(decoded.Theaters))
	}
}

func TestSnapshot_WriteYAML(t *testing.T) {
	st := seededStore(t)

	snap, err := Build(st, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := snap.Write(&buf, "yaml"); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if !strings.Contains(buf.String(), "theaters:") {
		t.Error("yaml output missing theaters key")
	}
}

func TestSnapshot_UnknownFormat(t *testing.T) {
	snap := &Snapshot{}
	if err := snap.Write(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("unknown format should error")
	}
}
