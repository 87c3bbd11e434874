package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Parsing
// ============================================================================

type stringer string

func (s stringer) String() string { return string(s) }

func TestParseBRL(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"localized with thousands", "R$ 1.234,56", "1234.56"},
		{"localized whole", "R$ 10,00", "10"},
		{"no prefix", "250,50", "250.5"},
		{"non-breaking space after symbol", "R$\u00a0980,00", "980"},
		{"millions", "R$ 1.000.000,00", "1000000"},
		{"surrounding spaces", "  R$ 75,90  ", "75.9"},
		{"integer", 500, "500"},
		{"int64", int64(42), "42"},
		{"int8", int8(-3), "-3"},
		{"int16", int16(1200), "1200"},
		{"int32", int32(90), "90"},
		{"uint", uint(15), "15"},
		{"uint8", uint8(255), "255"},
		{"uint16", uint16(65535), "65535"},
		{"uint32", uint32(100000), "100000"},
		{"uint64", uint64(7), "7"},
		{"uint64 above int64", uint64(math.MaxUint64), "18446744073709551615"},
		{"float32", float32(12.5), "12.5"},
		{"float", 123.45, "123.45"},
		{"decimal passthrough", decimal.RequireFromString("99.99"), "99.99"},
		{"stringer", stringer("R$ 3,00"), "3"},
		{"garbage", "abc", "0"},
		{"empty", "", "0"},
		{"prefix only", "R$", "0"},
		{"nil", nil, "0"},
		{"NaN", math.NaN(), "0"},
		{"infinity", math.Inf(1), "0"},
		{"unsupported type", []string{"10"}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBRL(tt.raw)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseBRL_DotIsAlwaysThousands(t *testing.T) {
	// Strings follow pt-BR notation even when they look like en-US.
	assert.True(t, decimal.NewFromInt(123456).Equal(ParseBRL("1234.56")))
}

func TestParseBRL_NilDecimalPointer(t *testing.T) {
	var d *decimal.Decimal
	assert.True(t, ParseBRL(d).IsZero())
}

// ============================================================================
// Formatting
// ============================================================================

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"thousands", "1234.56", "R$ 1.234,56"},
		{"zero", "0", "R$ 0,00"},
		{"cents only", "0.07", "R$ 0,07"},
		{"target", "6000000", "R$ 6.000.000,00"},
		{"rounds half up", "10.005", "R$ 10,01"},
		{"negative", "-15.5", "-R$ 15,50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBRL(decimal.RequireFromString(tt.amount)))
		})
	}
}

// ============================================================================
// Money
// ============================================================================

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"simple", "12.34", 1234},
		{"whole", "100", 10000},
		{"rounding", "12.345", 1235},
		{"negative", "-50.99", -5099},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFromDecimal(decimal.RequireFromString(tt.amount)).Amount())
		})
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, New(0).IsZero())
	assert.False(t, New(1).IsZero())
	assert.False(t, New(-1).IsZero())
}

func TestPercentageOf(t *testing.T) {
	part := NewFromDecimal(decimal.NewFromInt(1_500_000))
	target := NewFromDecimal(decimal.NewFromInt(6_000_000))

	assert.True(t, decimal.NewFromInt(25).Equal(part.PercentageOf(target)))
	assert.True(t, part.PercentageOf(New(0)).IsZero())

	third := New(100).PercentageOf(New(300))
	assert.Equal(t, "33.33", third.StringFixed(2))
}

func TestToDecimal(t *testing.T) {
	assert.Equal(t, "1234.56", New(123456).ToDecimal().StringFixed(2))
}

func TestNilSafety(t *testing.T) {
	var m *Money
	assert.Equal(t, int64(0), m.Amount())
	assert.True(t, m.IsZero())
	assert.True(t, m.ToDecimal().IsZero())
	assert.Equal(t, "R$ 0,00", m.Display())
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkParseBRL(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ParseBRL("R$ 1.234,56")
	}
}

func BenchmarkFormatBRL(b *testing.B) {
	d := decimal.RequireFromString("1234.56")
	for i := 0; i < b.N; i++ {
		_ = FormatBRL(d)
	}
}
