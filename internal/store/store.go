// Package store provides SQLite-backed persistence for the two theaters,
// their logs and action-item queues, reflections, and global metrics. The
// store owns all state mutation; derived values (status, score, staleness,
// risk) are computed by the pure packages and written back by the recompute
// engine.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/6ofHertz/aelpher-control/internal/domain"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed theater persistence
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store at the given database path, running migrations and
// seeding the two theater rows on first open
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("seeding theaters: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// seed creates the two fixed theater rows and the metrics singleton.
// Existing rows are left untouched.
func (s *Store) seed() error {
	now := s.now()
	for _, arm := range domain.Arms {
		_, err := s.db.Exec(`
			INSERT OR IGNORE INTO theaters (arm, status, energy_allocation, last_activity)
			VALUES (?, ?, 50, ?)
		`, string(arm), string(domain.StatusIdle), now)
		if err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO metrics (id, last_sync) VALUES (1, ?)`, now)
	return err
}

// Theater returns a full snapshot of one theater: row fields plus its log
// collection (newest first) and action-item queue (insertion order)
func (s *Store) Theater(arm domain.ArmType) (*domain.Theater, error) {
	row := s.db.QueryRow(`
		SELECT arm, status, current_item_id, total_progress, energy_allocation, last_activity
		FROM theaters WHERE arm = ?
	`, string(arm))

	var t domain.Theater
	var armStr, status string
	var currentItemID sql.NullString
	var lastActivity sql.NullTime

	err := row.Scan(&armStr, &status, &currentItemID, &t.TotalProgress, &t.EnergyAllocation, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("theater %s: %w", arm, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	t.Arm = domain.ArmType(armStr)
	t.Status = domain.StatusType(status)
	if currentItemID.Valid {
		t.CurrentItemID = currentItemID.String
	}
	if lastActivity.Valid {
		t.LastActivity = lastActivity.Time
	}

	if t.Logs, err = s.Logs(arm); err != nil {
		return nil, err
	}
	if t.Queue, err = s.Queue(arm); err != nil {
		return nil, err
	}

	return &t, nil
}

// Theaters returns snapshots of both theaters in canonical arm order
func (s *Store) Theaters() ([]*domain.Theater, error) {
	theaters := make([]*domain.Theater, 0, len(domain.Arms))
	for _, arm := range domain.Arms {
		t, err := s.Theater(arm)
		if err != nil {
			return nil, err
		}
		theaters = append(theaters, t)
	}
	return theaters, nil
}

// AddLog appends a log entry to a theater, evicting entries beyond the
// retention cap and bumping the theater's last-activity instant
func (s *Store) AddLog(arm domain.ArmType, action, details string, durationMin int) (*domain.LogEntry, error) {
	entry := &domain.LogEntry{
		ID:          uuid.NewString(),
		Arm:         arm,
		Timestamp:   s.now(),
		Action:      action,
		Details:     details,
		DurationMin: durationMin,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO logs (id, arm, timestamp, action, details, duration_min)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, string(arm), entry.Timestamp, entry.Action, entry.Details, entry.DurationMin)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		DELETE FROM logs WHERE arm = ? AND id NOT IN (
			SELECT id FROM logs WHERE arm = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?
		)
	`, string(arm), string(arm), domain.MaxLogEntries)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`UPDATE theaters SET last_activity = ? WHERE arm = ?`, entry.Timestamp, string(arm))
	if err != nil {
		return nil, err
	}

	return entry, tx.Commit()
}

// Logs returns a theater's log collection, newest first
func (s *Store) Logs(arm domain.ArmType) ([]domain.LogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, arm, timestamp, action, details, duration_min
		FROM logs WHERE arm = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?
	`, string(arm), domain.MaxLogEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var armStr string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &armStr, &e.Timestamp, &e.Action, &details, &e.DurationMin); err != nil {
			return nil, err
		}
		e.Arm = domain.ArmType(armStr)
		if details.Valid {
			e.Details = details.String
		}
		logs = append(logs, e)
	}

	return logs, rows.Err()
}

// AddItem adds an action item to a theater's queue. The stored score is
// always zero; scores are derived at read time.
func (s *Store) AddItem(arm domain.ArmType, title, description string, gap int, earlyBonus bool) (*domain.ActionItem, error) {
	now := s.now()
	item := &domain.ActionItem{
		ID:                    uuid.NewString(),
		Arm:                   arm,
		Title:                 title,
		Description:           description,
		Gap:                   gap,
		HasEarlyProgressBonus: earlyBonus,
		CreatedAt:             now,
		LastUpdated:           now,
	}

	_, err := s.db.Exec(`
		INSERT INTO items (id, arm, title, description, gap, early_bonus, manually_selected, locked, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, FALSE, ?, ?)
	`, item.ID, string(arm), item.Title, item.Description, item.Gap, item.HasEarlyProgressBonus, item.CreatedAt, item.LastUpdated)
	if err != nil {
		return nil, err
	}

	return item, nil
}

// Queue returns a theater's action items in insertion order. Score and
// StaleDays are zero here; callers derive them via the scoring package.
func (s *Store) Queue(arm domain.ArmType) ([]domain.ActionItem, error) {
	rows, err := s.db.Query(`
		SELECT id, arm, title, description, gap, early_bonus, manually_selected, locked, created_at, last_updated
		FROM items WHERE arm = ? ORDER BY rowid
	`, string(arm))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []domain.ActionItem
	for rows.Next() {
		var item domain.ActionItem
		var armStr string
		var description sql.NullString
		err := rows.Scan(&item.ID, &armStr, &item.Title, &description, &item.Gap,
			&item.HasEarlyProgressBonus, &item.IsManuallySelected, &item.IsLocked,
			&item.CreatedAt, &item.LastUpdated)
		if err != nil {
			return nil, err
		}
		item.Arm = domain.ArmType(armStr)
		if description.Valid {
			item.Description = description.String
		}
		queue = append(queue, item)
	}

	return queue, rows.Err()
}

// SelectItem makes an item the theater's current focus. A manual selection
// locks the chosen item and clears lock flags on every other item of the
// queue in the same transaction, so at most one item per queue is ever
// locked. An automatic selection (recompute write-back) only moves the
// current-item pointer.
func (s *Store) SelectItem(arm domain.ArmType, itemID string, manual bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRow(`SELECT arm FROM items WHERE id = ?`, itemID).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if owner != string(arm) {
		return fmt.Errorf("item %s belongs to arm %s, not %s", itemID, owner, arm)
	}

	if manual {
		_, err = tx.Exec(`
			UPDATE items SET locked = FALSE, manually_selected = FALSE
			WHERE arm = ? AND id != ? AND (locked OR manually_selected)
		`, string(arm), itemID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE items SET locked = TRUE, manually_selected = TRUE, last_updated = ?
			WHERE id = ?
		`, s.now(), itemID)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`UPDATE theaters SET current_item_id = ? WHERE arm = ?`, itemID, string(arm))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ClearManualSelection returns a theater to automatic mode by clearing lock
// flags across its queue. The next recompute re-selects the top-ranked item.
func (s *Store) ClearManualSelection(arm domain.ArmType) error {
	_, err := s.db.Exec(`
		UPDATE items SET locked = FALSE, manually_selected = FALSE, last_updated = ?
		WHERE arm = ? AND (locked OR manually_selected)
	`, s.now(), string(arm))
	return err
}

// SetStatus records a derived status on a theater
func (s *Store) SetStatus(arm domain.ArmType, status domain.StatusType) error {
	_, err := s.db.Exec(`UPDATE theaters SET status = ? WHERE arm = ?`, string(status), string(arm))
	return err
}

// SetEnergyAllocation updates a theater's energy percentage
func (s *Store) SetEnergyAllocation(arm domain.ArmType, pct int) error {
	_, err := s.db.Exec(`UPDATE theaters SET energy_allocation = ? WHERE arm = ?`, pct, string(arm))
	return err
}

// SetProgress updates a theater's overall progress percentage
func (s *Store) SetProgress(arm domain.ArmType, pct int) error {
	_, err := s.db.Exec(`UPDATE theaters SET total_progress = ? WHERE arm = ?`, pct, string(arm))
	return err
}

// AddReflection records an arm-scoped reflection note, evicting beyond the
// retention cap
func (s *Store) AddReflection(arm domain.ArmType, evidence, context string) (*domain.Reflection, error) {
	r := &domain.Reflection{
		ID:        uuid.NewString(),
		Arm:       arm,
		Timestamp: s.now(),
		Evidence:  evidence,
		Context:   context,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reflections (id, arm, timestamp, evidence, context)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, string(arm), r.Timestamp, r.Evidence, r.Context)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		DELETE FROM reflections WHERE arm = ? AND id NOT IN (
			SELECT id FROM reflections WHERE arm = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?
		)
	`, string(arm), string(arm), domain.MaxReflections)
	if err != nil {
		return nil, err
	}

	return r, tx.Commit()
}

// Reflections returns a theater's reflections, newest first
func (s *Store) Reflections(arm domain.ArmType) ([]domain.Reflection, error) {
	rows, err := s.db.Query(`
		SELECT id, arm, timestamp, evidence, context
		FROM reflections WHERE arm = ? ORDER BY timestamp DESC, rowid DESC
	`, string(arm))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reflections []domain.Reflection
	for rows.Next() {
		var r domain.Reflection
		var armStr string
		var context sql.NullString
		if err := rows.Scan(&r.ID, &armStr, &r.Timestamp, &r.Evidence, &context); err != nil {
			return nil, err
		}
		r.Arm = domain.ArmType(armStr)
		if context.Valid {
			r.Context = context.String
		}
		reflections = append(reflections, r)
	}

	return reflections, rows.Err()
}

// SaveMetrics persists the global aggregate row
func (s *Store) SaveMetrics(m domain.GlobalMetrics) error {
	_, err := s.db.Exec(`
		UPDATE metrics SET combined_progress = ?, energy_ibm = ?, energy_cs = ?, overload_risk = ?, last_sync = ?
		WHERE id = 1
	`, m.CombinedProgress, m.EnergyIBM, m.EnergyCS, m.OverloadRisk, m.LastSync)
	return err
}

// Metrics returns the global aggregate row
func (s *Store) Metrics() (*domain.GlobalMetrics, error) {
	row := s.db.QueryRow(`
		SELECT combined_progress, energy_ibm, energy_cs, overload_risk, last_sync
		FROM metrics WHERE id = 1
	`)

	var m domain.GlobalMetrics
	var lastSync sql.NullTime
	if err := row.Scan(&m.CombinedProgress, &m.EnergyIBM, &m.EnergyCS, &m.OverloadRisk, &lastSync); err != nil {
		return nil, err
	}
	if lastSync.Valid {
		m.LastSync = lastSync.Time
	}

	return &m, nil
}
