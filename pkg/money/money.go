// Package money provides currency-safe arithmetic and pt-BR parsing/formatting
// for the Brazilian real. Amounts are carried as shopspring/decimal values and
// rendered through go-money so display never suffers float rounding.
package money

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// BRL is the only currency the dashboard reports in.
const BRL = "BRL"

// currencyPrefix is stripped from localized cell values before parsing.
const currencyPrefix = "R$"

var brlFormatter = money.NewFormatter(2, ",", ".", "R$", "$ 1")

// ParseBRL converts a spreadsheet cell into a decimal amount.
//
// Numeric input is taken as already normalized. Strings are read in pt-BR
// notation ("R$ 1.234,56"): the currency prefix is removed, every "." is
// treated as a thousands separator and "," as the decimal separator.
// Anything that does not parse yields decimal.Zero, which callers treat as
// an invalid price. ParseBRL never panics.
func ParseBRL(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int8:
		return decimal.NewFromInt(int64(v))
	case int16:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return fromUint(uint64(v))
	case uint16:
		return fromUint(uint64(v))
	case uint32:
		return fromUint(uint64(v))
	case uint64:
		return fromUint(v)
	case string:
		return parseLocalized(v)
	case fmt.Stringer:
		return parseLocalized(v.String())
	default:
		return decimal.Zero
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func parseLocalized(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, currencyPrefix)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	// Excel exports often keep a non-breaking space after the symbol.
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatBRL renders an amount the way the dashboard shows it, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	return NewFromDecimal(d).Display()
}

// Money is a BRL amount stored in integer centavos.
type Money struct {
	m *money.Money
}

// New creates Money from centavos.
func New(cents int64) *Money {
	return &Money{m: money.New(cents, BRL)}
}

// NewFromDecimal rounds a decimal amount half away from zero to the nearest centavo.
func NewFromDecimal(amount decimal.Decimal) *Money {
	return New(amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// Amount returns the value in centavos.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// ToDecimal converts centavos back to a decimal amount with two places.
func (m *Money) ToDecimal() decimal.Decimal {
	return decimal.New(m.Amount(), -2)
}

// Display returns the pt-BR rendering, e.g. "R$ 1.234,56".
func (m *Money) Display() string {
	return brlFormatter.Format(m.Amount())
}

// PercentageOf returns how much of total this amount represents, in percent,
// unrounded. A zero total yields zero.
func (m *Money) PercentageOf(total *Money) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return m.ToDecimal().Div(total.ToDecimal()).Mul(decimal.NewFromInt(100))
}
