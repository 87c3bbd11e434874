package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

// SQLiteCache is the local copy of every unit ledger. Entries flagged dirty
// hold writes the primary store has not accepted yet.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache creates a cache over a migrated SQLite database (see db.OpenSQLite).
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

// Load reads the cached ledger of a unit.
func (c *SQLiteCache) Load(ctx context.Context, unitName string) (*unit.State, error) {
	var (
		target, current, history sql.NullString
		updatedAt                string
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT target, current_amount, history, updated_at FROM unit_cache WHERE unit = ?`,
		unitName,
	).Scan(&target, &current, &history, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cached unit state: %w", err)
	}

	state, err := stateFromColumns(target.String, current.String, []byte(history.String))
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		state.UpdatedAt = t
	}
	return state, nil
}

// Save merges patch into the cached ledger without touching the dirty flag.
func (c *SQLiteCache) Save(ctx context.Context, unitName string, patch unit.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	target, current, history, err := patchColumns(patch)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO unit_cache (unit, target, current_amount, history, updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT (unit) DO UPDATE SET
			target = COALESCE(excluded.target, unit_cache.target),
			current_amount = COALESCE(excluded.current_amount, unit_cache.current_amount),
			history = COALESCE(excluded.history, unit_cache.history),
			updated_at = excluded.updated_at`,
		unitName, target, current, history, c.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to cache unit state: %w", err)
	}
	return nil
}

// Replace overwrites the cached ledger with a full state from the primary
// store and clears the dirty flag.
func (c *SQLiteCache) Replace(ctx context.Context, unitName string, state unit.State) error {
	if err := c.Save(ctx, unitName, unit.FullPatch(state)); err != nil {
		return err
	}
	return c.ClearDirty(ctx, unitName)
}

// MarkDirty flags a unit for resync.
func (c *SQLiteCache) MarkDirty(ctx context.Context, unitName string) error {
	return c.setDirty(ctx, unitName, true)
}

// ClearDirty removes the resync flag of a unit.
func (c *SQLiteCache) ClearDirty(ctx context.Context, unitName string) error {
	return c.setDirty(ctx, unitName, false)
}

// IsDirty reports whether the unit has writes pending resync.
func (c *SQLiteCache) IsDirty(ctx context.Context, unitName string) (bool, error) {
	var dirty bool
	err := c.db.QueryRowContext(ctx, `SELECT dirty FROM unit_cache WHERE unit = ?`, unitName).Scan(&dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read dirty flag: %w", err)
	}
	return dirty, nil
}

// DirtyUnits lists units with writes pending resync.
func (c *SQLiteCache) DirtyUnits(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT unit FROM unit_cache WHERE dirty = 1 ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty units: %w", err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dirty unit: %w", err)
		}
		units = append(units, name)
	}
	return units, rows.Err()
}

func (c *SQLiteCache) setDirty(ctx context.Context, unitName string, dirty bool) error {
	flag := 0
	if dirty {
		flag = 1
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE unit_cache SET dirty = ? WHERE unit = ?`, flag, unitName); err != nil {
		return fmt.Errorf("failed to update dirty flag: %w", err)
	}
	return nil
}
