package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostgresStore_Load(t *testing.T) {
	ctx := context.Background()
	updated := time.Date(2025, time.October, 20, 15, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM unit_states`).
			WithArgs("Magé").
			WillReturnRows(pgxmock.NewRows([]string{"target", "current_amount", "history", "updated_at"}).
				AddRow("6000000.00", "1350.00", `[{"month":"set./25","amount":"1000"},{"month":"out./25","amount":"1350"}]`, updated))

		state, err := NewPostgresStore(mock).Load(ctx, "Magé")
		require.NoError(t, err)

		assert.True(t, dec("6000000").Equal(state.Target))
		assert.True(t, dec("1350").Equal(state.CurrentAmount))
		require.Len(t, state.History, 2)
		assert.Equal(t, "out./25", state.History[1].Label)
		assert.True(t, dec("1350").Equal(state.History[1].Amount))
		assert.Equal(t, updated, state.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null columns take defaults", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM unit_states`).
			WithArgs("Magé").
			WillReturnRows(pgxmock.NewRows([]string{"target", "current_amount", "history", "updated_at"}).
				AddRow("", "350", "", updated))

		state, err := NewPostgresStore(mock).Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, unit.DefaultTarget.Equal(state.Target))
		assert.True(t, dec("350").Equal(state.CurrentAmount))
		assert.Empty(t, state.History)
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM unit_states`).
			WithArgs("Magé").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresStore(mock).Load(ctx, "Magé")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM unit_states`).
			WithArgs("Magé").
			WillReturnError(errors.New("connection refused"))

		_, err = NewPostgresStore(mock).Load(ctx, "Magé")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrNotFound)
	})
}

func TestPostgresStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("amount patch leaves target untouched", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := unit.State{
			CurrentAmount: dec("350"),
			History:       []unit.HistoryPoint{{Label: "out./25", Amount: dec("350")}},
		}

		mock.ExpectExec(`INSERT INTO unit_states .+ ON CONFLICT \(unit\) DO UPDATE`).
			WithArgs("Magé", nil, "350", `[{"month":"out./25","amount":"350"}]`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewPostgresStore(mock).Save(ctx, "Magé", unit.AmountPatch(state)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("target patch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO unit_states`).
			WithArgs("Magé", "250000", nil, nil).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewPostgresStore(mock).Save(ctx, "Magé", unit.TargetPatch(dec("250000"))))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cleared history is written as an empty array", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO unit_states`).
			WithArgs("Magé", nil, "0", `[]`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		cleared := unit.ClearData(unit.Defaults())
		require.NoError(t, NewPostgresStore(mock).Save(ctx, "Magé", unit.AmountPatch(cleared)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		require.NoError(t, NewPostgresStore(mock).Save(ctx, "Magé", unit.Patch{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO unit_states`).
			WithArgs("Magé", "1", nil, nil).
			WillReturnError(errors.New("read-only transaction"))

		err = NewPostgresStore(mock).Save(ctx, "Magé", unit.TargetPatch(dec("1")))
		assert.ErrorContains(t, err, "read-only transaction")
	})
}
