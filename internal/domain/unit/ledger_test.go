package unit

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/ingest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.True(t, dec("6000000").Equal(s.Target))
	assert.True(t, s.CurrentAmount.IsZero())
	assert.NotNil(t, s.History)
	assert.Empty(t, s.History)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAdditive, false},
		{"additive", ModeAdditive, false},
		{" REPLACE ", ModeReplace, false},
		{"merge", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyBatch(t *testing.T) {
	loc := saoPaulo(t)
	at := time.Date(2025, time.October, 15, 12, 0, 0, 0, loc)
	prev := State{
		Target:        dec("6000000"),
		CurrentAmount: dec("1000"),
		History:       []HistoryPoint{{Label: "set./25", Amount: dec("1000")}},
	}
	batch := ingest.BatchAggregate{TotalRevenue: dec("350")}

	t.Run("additive", func(t *testing.T) {
		next := ApplyBatch(prev, batch, ModeAdditive, at, loc)
		assert.True(t, dec("1350").Equal(next.CurrentAmount))
		require.Len(t, next.History, 2)
		assert.Equal(t, "out./25", next.History[1].Label)
		assert.True(t, dec("1350").Equal(next.History[1].Amount))
		assert.True(t, prev.Target.Equal(next.Target))
		assert.Equal(t, at, next.UpdatedAt)
	})

	t.Run("replace keeps history", func(t *testing.T) {
		next := ApplyBatch(prev, batch, ModeReplace, at, loc)
		assert.True(t, dec("350").Equal(next.CurrentAmount))
		require.Len(t, next.History, 2)
		assert.Equal(t, "set./25", next.History[0].Label)
		assert.True(t, dec("350").Equal(next.History[1].Amount))
	})

	t.Run("does not alias previous history", func(t *testing.T) {
		base := prev
		base.History = make([]HistoryPoint, 1, 8) // spare capacity invites aliasing
		base.History[0] = prev.History[0]

		a := ApplyBatch(base, batch, ModeAdditive, at, loc)
		b := ApplyBatch(base, ingest.BatchAggregate{TotalRevenue: dec("1")}, ModeAdditive, at, loc)

		assert.Len(t, base.History, 1)
		assert.True(t, dec("1350").Equal(a.History[1].Amount))
		assert.True(t, dec("1001").Equal(b.History[1].Amount))
	})

	t.Run("from defaults", func(t *testing.T) {
		next := ApplyBatch(Defaults(), batch, ModeAdditive, at, loc)
		assert.True(t, dec("350").Equal(next.CurrentAmount))
		assert.Len(t, next.History, 1)
	})
}

func TestSetTarget(t *testing.T) {
	s := Defaults()

	for _, bad := range []string{"-5", "0"} {
		t.Run(bad, func(t *testing.T) {
			got, err := SetTarget(s, dec(bad))
			assert.ErrorIs(t, err, common.ErrInvalidTarget)
			assert.True(t, s.Target.Equal(got.Target))
		})
	}

	got, err := SetTarget(s, dec("250000.50"))
	require.NoError(t, err)
	assert.True(t, dec("250000.50").Equal(got.Target))
}

func TestClearData(t *testing.T) {
	s := State{Target: dec("100"), CurrentAmount: dec("50"), History: []HistoryPoint{{Label: "out./25", Amount: dec("50")}}}

	cleared := ClearData(s)
	assert.True(t, dec("100").Equal(cleared.Target))
	assert.True(t, cleared.CurrentAmount.IsZero())
	assert.NotNil(t, cleared.History)
	assert.Empty(t, cleared.History)
	assert.Len(t, s.History, 1)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		want    string
	}{
		{"quarter", "1500000", "6000000", "25"},
		{"rounded", "1", "3", "33.33"},
		{"over target", "9000", "6000", "150"},
		{"zero target", "10", "0", "0"},
		{"centavo rounding", "10.005", "100", "10.01"},
		{"target below one centavo", "1", "0.004", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(State{CurrentAmount: dec(tt.current), Target: dec(tt.target)})
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestHistoryLabel(t *testing.T) {
	loc := saoPaulo(t)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"january", time.Date(2025, time.January, 10, 12, 0, 0, 0, loc), "jan./25"},
		{"march", time.Date(2024, time.March, 1, 0, 0, 0, 0, loc), "mar./24"},
		{"december", time.Date(2030, time.December, 31, 23, 0, 0, 0, loc), "dez./30"},
		{"utc instant still in previous local month", time.Date(2025, time.November, 1, 1, 0, 0, 0, time.UTC), "out./25"},
		{"year 2000", time.Date(2000, time.May, 5, 0, 0, 0, 0, loc), "mai./00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HistoryLabel(tt.at, loc))
		})
	}

	assert.Equal(t, "nov./25", HistoryLabel(time.Date(2025, time.November, 1, 1, 0, 0, 0, time.UTC), nil))
}

func TestPatch(t *testing.T) {
	s := Defaults()
	assert.True(t, Patch{}.IsEmpty())

	target := dec("10")
	s = Patch{Target: &target}.Apply(s)
	assert.True(t, target.Equal(s.Target))
	assert.True(t, s.CurrentAmount.IsZero())

	filled := State{CurrentAmount: dec("5"), History: []HistoryPoint{{Label: "out./25", Amount: dec("5")}}}
	p := AmountPatch(filled)
	filled.History[0].Label = "changed"

	s = p.Apply(s)
	assert.True(t, target.Equal(s.Target))
	assert.True(t, dec("5").Equal(s.CurrentAmount))
	assert.Equal(t, "out./25", s.History[0].Label)
}
