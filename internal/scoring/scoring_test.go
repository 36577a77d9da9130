package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/6ofHertz/aelpher-control/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func TestStaleDays_Truncation(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"zero", 0, 0},
		{"under a tenth", 2 * time.Hour, 0},
		{"one tenth", 145 * time.Minute, 0.1},
		{"floors not rounds", 47*time.Hour + 50*time.Minute, 1.9},
		{"exact day", 24 * time.Hour, 1.0},
		{"five point one", 5*24*time.Hour + 3*time.Hour, 5.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StaleDays(testNow.Add(-tt.age), testNow)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("StaleDays(-%s) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestStaleDays_FutureTimestampGoesNegative(t *testing.T) {
	got := StaleDays(testNow.Add(36*time.Hour), testNow)
	if got >= 0 {
		t.Errorf("StaleDays(future) = %v, want negative", got)
	}
}

func TestScore_StalenessStrictInequality(t *testing.T) {
	base := domain.ActionItem{Gap: 0}

	base.LastUpdated = daysAgo(5.0)
	if got := Score(base, testNow); got != 0 {
		t.Errorf("exactly 5.0 days: score = %d, want 0", got)
	}

	base.LastUpdated = testNow.Add(-(5*24*time.Hour + 3*time.Hour))
	if got := Score(base, testNow); got != 50 {
		t.Errorf("5.1 days: score = %d, want 50", got)
	}
}

func TestScore_GapMonotonicAndClamped(t *testing.T) {
	prev := math.MinInt
	for gap := 0; gap <= 8; gap++ {
		item := domain.ActionItem{Gap: gap, LastUpdated: testNow}
		got := Score(item, testNow)
		if got < prev {
			t.Errorf("gap %d: score %d decreased from %d", gap, got, prev)
		}
		prev = got
	}

	at5 := Score(domain.ActionItem{Gap: 5, LastUpdated: testNow}, testNow)
	at9 := Score(domain.ActionItem{Gap: 9, LastUpdated: testNow}, testNow)
	if at5 != 50 || at9 != 50 {
		t.Errorf("gap clamp: score(5) = %d, score(9) = %d, want 50 both", at5, at9)
	}
}

func TestScore_NegativeGapNotClamped(t *testing.T) {
	item := domain.ActionItem{Gap: -2, LastUpdated: testNow}
	if got := Score(item, testNow); got != -20 {
		t.Errorf("gap -2: score = %d, want -20", got)
	}
}

func TestScore_Components(t *testing.T) {
	tests := []struct {
		name string
		item domain.ActionItem
		want int
	}{
		{"all zero", domain.ActionItem{LastUpdated: testNow}, 0},
		{"early bonus only", domain.ActionItem{LastUpdated: testNow, HasEarlyProgressBonus: true}, 15},
		{"gap only", domain.ActionItem{LastUpdated: testNow, Gap: 3}, 30},
		{"maximum", domain.ActionItem{LastUpdated: daysAgo(6), Gap: 5, HasEarlyProgressBonus: true}, 115},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.item, testNow); got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRank_PinnedBeatsScore(t *testing.T) {
	queue := []domain.ActionItem{
		{ID: "hot", Gap: 5, HasEarlyProgressBonus: true, LastUpdated: daysAgo(6)},
		{ID: "pinned", Gap: 0, LastUpdated: testNow, IsLocked: true, IsManuallySelected: true},
	}

	ranked := Rank(queue, testNow)
	if ranked[0].ID != "pinned" {
		t.Errorf("ranked[0] = %s, want pinned", ranked[0].ID)
	}
	if ranked[1].ID != "hot" || ranked[1].Score != 115 {
		t.Errorf("ranked[1] = %s score %d, want hot score 115", ranked[1].ID, ranked[1].Score)
	}
}

func TestRank_LockedAloneDoesNotPin(t *testing.T) {
	queue := []domain.ActionItem{
		{ID: "a", Gap: 4, LastUpdated: testNow},
		{ID: "locked-only", Gap: 0, LastUpdated: testNow, IsLocked: true},
	}

	ranked := Rank(queue, testNow)
	if ranked[0].ID != "a" {
		t.Errorf("ranked[0] = %s, want a (lock without manual selection must not pin)", ranked[0].ID)
	}
}

func TestRank_TiesPreserveInputOrder(t *testing.T) {
	queue := []domain.ActionItem{
		{ID: "first", Gap: 2, LastUpdated: testNow},
		{ID: "second", Gap: 2, LastUpdated: testNow},
		{ID: "third", Gap: 2, LastUpdated: testNow},
	}

	ranked := Rank(queue, testNow)
	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].ID != want {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, want)
		}
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	queue := []domain.ActionItem{
		{ID: "a", Gap: 1, LastUpdated: testNow},
		{ID: "b", Gap: 4, LastUpdated: testNow},
	}

	Rank(queue, testNow)
	if queue[0].ID != "a" || queue[0].Score != 0 {
		t.Error("Rank mutated its input")
	}
}

func TestTop_LockedWinsOverHigherScore(t *testing.T) {
	queue := []domain.ActionItem{
		{ID: "hot", Gap: 5, HasEarlyProgressBonus: true, LastUpdated: daysAgo(6)},
		{ID: "pinned", Gap: 1, LastUpdated: testNow, IsLocked: true, IsManuallySelected: true},
	}

	top := Top(queue, testNow)
	if top == nil || top.ID != "pinned" {
		t.Fatalf("Top = %+v, want pinned", top)
	}
	if top.Score != 10 {
		t.Errorf("pinned score = %d, want 10 (recomputed)", top.Score)
	}
}

func TestTop_EmptyQueue(t *testing.T) {
	if top := Top(nil, testNow); top != nil {
		t.Errorf("Top(nil) = %+v, want nil", top)
	}
}

func TestTop_EndToEndExample(t *testing.T) {
	a := domain.ActionItem{ID: "A", Gap: 5, HasEarlyProgressBonus: true, LastUpdated: daysAgo(6)}
	b := domain.ActionItem{ID: "B", Gap: 1, LastUpdated: daysAgo(1)}

	if got := Score(a, testNow); got != 115 {
		t.Errorf("score(A) = %d, want 115", got)
	}
	if got := Score(b, testNow); got != 10 {
		t.Errorf("score(B) = %d, want 10", got)
	}

	ranked := Rank([]domain.ActionItem{a, b}, testNow)
	if ranked[0].ID != "A" || ranked[1].ID != "B" {
		t.Errorf("rank = [%s %s], want [A B]", ranked[0].ID, ranked[1].ID)
	}

	top := Top([]domain.ActionItem{a, b}, testNow)
	if top == nil || top.ID != "A" {
		t.Fatalf("Top = %+v, want A", top)
	}
}

func TestOverloadRisk_HealthyBaseline(t *testing.T) {
	a := domain.Theater{Arm: domain.ArmIBM, Status: domain.StatusActive, EnergyAllocation: 50}
	b := domain.Theater{Arm: domain.ArmCS, Status: domain.StatusActive, EnergyAllocation: 50}

	if got := OverloadRisk(a, b, testNow); got != 0 {
		t.Errorf("risk = %d, want 0", got)
	}
}

func TestOverloadRisk_PinnedScenario(t *testing.T) {
	// Both blocked (40) + every item stale (25) + imbalance 70 (15) = 80
	stale := domain.ActionItem{LastUpdated: daysAgo(6)}
	a := domain.Theater{Status: domain.StatusBlocked, EnergyAllocation: 85, Queue: []domain.ActionItem{stale, stale}}
	b := domain.Theater{Status: domain.StatusBlocked, EnergyAllocation: 15, Queue: []domain.ActionItem{stale}}

	if got := OverloadRisk(a, b, testNow); got != 80 {
		t.Errorf("risk = %d, want 80", got)
	}
}

func TestOverloadRisk_StatusPenalties(t *testing.T) {
	tests := []struct {
		a, b domain.StatusType
		want int
	}{
		{domain.StatusActive, domain.StatusWarm, 0},
		{domain.StatusIdle, domain.StatusActive, 10},
		{domain.StatusIdle, domain.StatusIdle, 20},
		{domain.StatusBlocked, domain.StatusActive, 20},
		{domain.StatusBlocked, domain.StatusIdle, 30},
		{domain.StatusBlocked, domain.StatusBlocked, 40},
	}

	for _, tt := range tests {
		a := domain.Theater{Status: tt.a, EnergyAllocation: 50}
		b := domain.Theater{Status: tt.b, EnergyAllocation: 50}
		if got := OverloadRisk(a, b, testNow); got != tt.want {
			t.Errorf("risk(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOverloadRisk_EnergyImbalanceBars(t *testing.T) {
	tests := []struct {
		energyA, energyB int
		want             int
	}{
		{50, 50, 0},
		{70, 30, 0},  // d=40, not strictly greater
		{71, 30, 10}, // d=41
		{80, 20, 10}, // d=60, not strictly greater
		{81, 20, 15}, // d=61
	}

	for _, tt := range tests {
		a := domain.Theater{Status: domain.StatusActive, EnergyAllocation: tt.energyA}
		b := domain.Theater{Status: domain.StatusActive, EnergyAllocation: tt.energyB}
		if got := OverloadRisk(a, b, testNow); got != tt.want {
			t.Errorf("risk(%d, %d) = %d, want %d", tt.energyA, tt.energyB, got, tt.want)
		}
	}
}

func TestOverloadRisk_EmptyQueuesNoDivisionByZero(t *testing.T) {
	a := domain.Theater{Status: domain.StatusBlocked, EnergyAllocation: 50}
	b := domain.Theater{Status: domain.StatusActive, EnergyAllocation: 50}

	if got := OverloadRisk(a, b, testNow); got != 20 {
		t.Errorf("risk = %d, want 20 (status penalty only)", got)
	}
}

func TestOverloadRisk_ClampedAt100(t *testing.T) {
	stale := domain.ActionItem{LastUpdated: daysAgo(10)}
	a := domain.Theater{Status: domain.StatusBlocked, EnergyAllocation: 100, Queue: []domain.ActionItem{stale}}
	b := domain.Theater{Status: domain.StatusBlocked, EnergyAllocation: 0, Queue: []domain.ActionItem{stale}}

	// 50 + 40 + 15 = 105 before the clamp
	if got := OverloadRisk(a, b, testNow); got != 100 {
		t.Errorf("risk = %d, want 100", got)
	}
}
