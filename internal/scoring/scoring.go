// Package scoring ranks a theater's action-item queue and aggregates
// cross-theater overload risk. All functions are pure: they read their
// arguments, take the current instant explicitly, and return new values.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/6ofHertz/aelpher-control/internal/domain"
)

const (
	staleThresholdDays = 5.0
	stalenessPoints    = 50
	gapPointsPerLevel  = 10
	earlyBonusPoints   = 15

	blockedPenalty      = 20
	idlePenalty         = 10
	imbalanceHighBar    = 60
	imbalanceLowBar     = 40
	imbalanceHighPoints = 15
	imbalanceLowPoints  = 10
)

// StaleDays returns the days elapsed since lastUpdated, floored to one
// decimal place. When lastUpdated is ahead of now the result is negative;
// clock skew is deliberately left visible rather than clamped away.
func StaleDays(lastUpdated, now time.Time) float64 {
	days := now.Sub(lastUpdated).Hours() / 24
	return math.Floor(days*10) / 10
}

// Score computes the urgency score for one item at the given instant.
// Staleness strictly greater than 5 days earns 50 points, each gap level up
// to 5 earns 10, and the early-progress bonus earns 15. Gap has no lower
// clamp, so a negative gap subtracts; validating gap input is the caller's
// concern. The well-formed range is 0-115 and is not normalized to 100.
func Score(item domain.ActionItem, now time.Time) int {
	score := 0
	if StaleDays(item.LastUpdated, now) > staleThresholdDays {
		score += stalenessPoints
	}
	gap := item.Gap
	if gap > domain.MaxGap {
		gap = domain.MaxGap
	}
	score += gap * gapPointsPerLevel
	if item.HasEarlyProgressBonus {
		score += earlyBonusPoints
	}
	return score
}

// Rank returns a new slice ordered most-urgent-first, with Score and
// StaleDays refreshed on every element. Items that are both locked and
// manually selected sort ahead of everything else; otherwise higher scores
// win and ties keep their input order. The input slice is not mutated.
func Rank(queue []domain.ActionItem, now time.Time) []domain.ActionItem {
	ranked := make([]domain.ActionItem, len(queue))
	copy(ranked, queue)
	for i := range ranked {
		ranked[i].Score = Score(ranked[i], now)
		ranked[i].StaleDays = StaleDays(ranked[i].LastUpdated, now)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Pinned() != ranked[j].Pinned() {
			return ranked[i].Pinned()
		}
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Top returns the item a theater should focus on next, or nil for an empty
// queue. A locked manual selection wins regardless of any other item's
// score; should stale data carry more than one lock, the first in queue
// order wins (the store enforces a single lock per queue on mutation).
func Top(queue []domain.ActionItem, now time.Time) *domain.ActionItem {
	for _, item := range queue {
		if item.Pinned() {
			item.Score = Score(item, now)
			item.StaleDays = StaleDays(item.LastUpdated, now)
			return &item
		}
	}

	ranked := Rank(queue, now)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// OverloadRisk summarizes both theaters' health as a 0-100 score: the share
// of stale items across both queues (up to 50 points), penalties for blocked
// or idle theaters, and a penalty for lopsided energy allocation.
func OverloadRisk(a, b domain.Theater, now time.Time) int {
	total := len(a.Queue) + len(b.Queue)
	stale := 0
	for _, queue := range [][]domain.ActionItem{a.Queue, b.Queue} {
		for _, item := range queue {
			if StaleDays(item.LastUpdated, now) > staleThresholdDays {
				stale++
			}
		}
	}

	staleRatio := 0.0
	if total > 0 {
		staleRatio = float64(stale) / float64(total)
	}

	penalty := statusPenalty(a.Status) + statusPenalty(b.Status)

	imbalance := a.EnergyAllocation - b.EnergyAllocation
	if imbalance < 0 {
		imbalance = -imbalance
	}
	switch {
	case imbalance > imbalanceHighBar:
		penalty += imbalanceHighPoints
	case imbalance > imbalanceLowBar:
		penalty += imbalanceLowPoints
	}

	risk := int(math.Round(staleRatio*50)) + penalty
	if risk > 100 {
		risk = 100
	}
	if risk < 0 {
		risk = 0
	}
	return risk
}

func statusPenalty(s domain.StatusType) int {
	switch s {
	case domain.StatusBlocked:
		return blockedPenalty
	case domain.StatusIdle:
		return idlePenalty
	default:
		return 0
	}
}
