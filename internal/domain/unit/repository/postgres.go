package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

// PgxQuerier is the subset of pgxpool.Pool the store needs.
type PgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps one row per unit in unit_states.
type PostgresStore struct {
	db PgxQuerier
}

// NewPostgresStore creates a Postgres-backed unit store.
func NewPostgresStore(db PgxQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

const loadUnitStateQuery = `
		SELECT COALESCE(target::text, ''), COALESCE(current_amount::text, ''), COALESCE(history::text, ''), updated_at
		FROM unit_states
		WHERE unit = $1`

// Load reads the ledger of a unit.
func (s *PostgresStore) Load(ctx context.Context, unitName string) (*unit.State, error) {
	var (
		target, current, history string
		updatedAt                time.Time
	)

	row := s.db.QueryRow(ctx, loadUnitStateQuery, unitName)
	if err := row.Scan(&target, &current, &history, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load unit state: %w", err)
	}

	state, err := stateFromColumns(target, current, []byte(history))
	if err != nil {
		return nil, err
	}
	state.UpdatedAt = updatedAt
	return state, nil
}

const saveUnitStateQuery = `
		INSERT INTO unit_states (unit, target, current_amount, history, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::jsonb, now())
		ON CONFLICT (unit) DO UPDATE SET
			target = COALESCE(EXCLUDED.target, unit_states.target),
			current_amount = COALESCE(EXCLUDED.current_amount, unit_states.current_amount),
			history = COALESCE(EXCLUDED.history, unit_states.history),
			updated_at = now()`

// Save upserts the fields present in patch.
func (s *PostgresStore) Save(ctx context.Context, unitName string, patch unit.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	target, current, history, err := patchColumns(patch)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, saveUnitStateQuery, unitName, target, current, history); err != nil {
		return fmt.Errorf("failed to save unit state: %w", err)
	}
	return nil
}
