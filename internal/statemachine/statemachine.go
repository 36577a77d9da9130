// Package statemachine derives a theater's activity status from its log
// history. The derivation is a pure function of the ordered log list and the
// current instant; it holds no state between calls.
package statemachine

import (
	"strings"
	"time"

	"github.com/6ofHertz/aelpher-control/internal/domain"
)

const (
	activeWindow = 2 * time.Hour
	warmWindow   = 24 * time.Hour
	idleWindow   = 168 * time.Hour

	// Only the most recent entries are scanned for explicit blockers
	blockerScanDepth = 10
)

// DeriveStatus classifies a theater from its logs, which must be ordered
// newest-first. An empty log list is idle. An explicit blocker mention in the
// recent entries wins over recency. A zero timestamp on the newest entry is
// treated as infinitely stale, so broken data fails toward blocked.
func DeriveStatus(logs []domain.LogEntry, now time.Time) domain.StatusType {
	if len(logs) == 0 {
		return domain.StatusIdle
	}

	recent := logs
	if len(recent) > blockerScanDepth {
		recent = recent[:blockerScanDepth]
	}
	for _, entry := range recent {
		if mentionsBlocker(entry.Action) || mentionsBlocker(entry.Details) {
			return domain.StatusBlocked
		}
	}

	last := logs[0].Timestamp
	if last.IsZero() {
		return domain.StatusBlocked
	}

	elapsed := now.Sub(last)
	switch {
	case elapsed <= activeWindow:
		return domain.StatusActive
	case elapsed <= warmWindow:
		return domain.StatusWarm
	case elapsed <= idleWindow:
		return domain.StatusIdle
	default:
		return domain.StatusBlocked
	}
}

func mentionsBlocker(text string) bool {
	text = strings.ToLower(text)
	return strings.Contains(text, "blocked") || strings.Contains(text, "blocker")
}
