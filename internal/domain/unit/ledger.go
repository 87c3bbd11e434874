// Package unit holds the per-unit revenue ledger: the running total against a
// financial target and the month-labelled history of totals after each
// upload. Everything here is pure; persistence lives in unit/repository.
package unit

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/ingest"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/money"
)

// DefaultTarget is the target a unit starts with.
var DefaultTarget = decimal.NewFromInt(6_000_000)

// DefaultUnits are the clinics tracked when none are configured.
var DefaultUnits = []string{"Barra da Tijuca", "Teresópolis", "Magé"}

// HistoryPoint is the accumulated amount recorded after one upload.
type HistoryPoint struct {
	Label  string          `json:"month" csv:"month"`
	Amount decimal.Decimal `json:"amount" csv:"amount"`
}

// State is the persisted ledger of one unit.
type State struct {
	Target        decimal.Decimal `json:"target"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	History       []HistoryPoint  `json:"history"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Defaults returns the state of a unit that has never been written.
func Defaults() State {
	return State{
		Target:        DefaultTarget,
		CurrentAmount: decimal.Zero,
		History:       []HistoryPoint{},
	}
}

// Patch is a partial write. Nil fields are left untouched by the store.
type Patch struct {
	Target        *decimal.Decimal
	CurrentAmount *decimal.Decimal
	History       *[]HistoryPoint
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Target == nil && p.CurrentAmount == nil && p.History == nil
}

// Apply merges the patch into s, last write wins per field.
func (p Patch) Apply(s State) State {
	if p.Target != nil {
		s.Target = *p.Target
	}
	if p.CurrentAmount != nil {
		s.CurrentAmount = *p.CurrentAmount
	}
	if p.History != nil {
		s.History = slices.Clone(*p.History)
	}
	return s
}

// AmountPatch writes the running total and history after an upload.
func AmountPatch(s State) Patch {
	amount := s.CurrentAmount
	history := slices.Clone(s.History)
	return Patch{CurrentAmount: &amount, History: &history}
}

// FullPatch writes every field of s.
func FullPatch(s State) Patch {
	p := AmountPatch(s)
	target := s.Target
	p.Target = &target
	return p
}

// TargetPatch writes only the target.
func TargetPatch(target decimal.Decimal) Patch {
	return Patch{Target: &target}
}

// Mode selects how a batch combines with the running total.
type Mode string

const (
	ModeAdditive Mode = "additive"
	ModeReplace  Mode = "replace"
)

// ParseMode reads an upload mode. An empty string means additive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAdditive:
		return ModeAdditive, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidMode, s)
	}
}

// ApplyBatch folds one upload into the ledger. Additive mode adds the batch
// total to the running amount; replace mode overwrites it. Either way a
// history point labelled with the month of at (in loc) is appended, and the
// history of prev is left untouched.
func ApplyBatch(prev State, batch ingest.BatchAggregate, mode Mode, at time.Time, loc *time.Location) State {
	next := prev
	switch mode {
	case ModeReplace:
		next.CurrentAmount = batch.TotalRevenue
	default:
		next.CurrentAmount = prev.CurrentAmount.Add(batch.TotalRevenue)
	}

	next.History = make([]HistoryPoint, len(prev.History), len(prev.History)+1)
	copy(next.History, prev.History)
	next.History = append(next.History, HistoryPoint{
		Label:  HistoryLabel(at, loc),
		Amount: next.CurrentAmount,
	})
	next.UpdatedAt = at
	return next
}

// SetTarget replaces the target. Only strictly positive targets are accepted.
func SetTarget(s State, target decimal.Decimal) (State, error) {
	if !target.IsPositive() {
		return s, fmt.Errorf("%w: got %s", common.ErrInvalidTarget, target)
	}
	s.Target = target
	return s, nil
}

// ClearData zeroes the running total and drops the history, keeping the target.
func ClearData(s State) State {
	s.CurrentAmount = decimal.Zero
	s.History = []HistoryPoint{}
	return s
}

// Progress is the share of the target reached, in percent with two decimals,
// computed on centavo amounts. It is not capped at 100.
func Progress(s State) decimal.Decimal {
	if !s.Target.IsPositive() {
		return decimal.Zero
	}
	current := money.NewFromDecimal(s.CurrentAmount)
	return current.PercentageOf(money.NewFromDecimal(s.Target)).Round(2)
}

var monthAbbrev = [12]string{"jan.", "fev.", "mar.", "abr.", "mai.", "jun.", "jul.", "ago.", "set.", "out.", "nov.", "dez."}

// HistoryLabel renders the pt-BR short month and two-digit year, e.g. "out./25".
// A nil loc means UTC.
func HistoryLabel(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := at.In(loc)
	return fmt.Sprintf("%s/%02d", monthAbbrev[t.Month()-1], t.Year()%100)
}
