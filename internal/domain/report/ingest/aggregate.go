package ingest

import (
	"slices"

	"github.com/shopspring/decimal"
)

// TopProceduresLimit caps the procedure ranking.
const TopProceduresLimit = 10

// RankedAmount is one entry of a revenue ranking.
type RankedAmount struct {
	Name   string          `json:"name" csv:"name"`
	Amount decimal.Decimal `json:"amount" csv:"amount"`
}

// BatchAggregate summarizes a single uploaded report.
type BatchAggregate struct {
	TotalRevenue          decimal.Decimal `json:"totalRevenue"`
	ProcedureCount        int             `json:"procedureCount"`
	AverageTicket         decimal.Decimal `json:"averageTicket"`
	RevenueByProfessional []RankedAmount  `json:"revenueByProfessional"`
	TopProcedures         []RankedAmount  `json:"topProcedures"`
}

// Aggregate computes batch totals and rankings. Grouping is by exact name;
// rankings are sorted by amount descending with ties in first-seen order.
// Records without a procedure name count toward the totals but are left out
// of the procedure ranking.
func Aggregate(records []ProcedureRecord) BatchAggregate {
	total := decimal.Zero
	byProfessional := newRanking()
	byProcedure := newRanking()

	for _, r := range records {
		total = total.Add(r.Price)
		byProfessional.add(r.Professional, r.Price)
		if r.Procedure != "" {
			byProcedure.add(r.Procedure, r.Price)
		}
	}

	avg := decimal.Zero
	if n := len(records); n > 0 {
		avg = total.Div(decimal.NewFromInt(int64(n)))
	}

	top := byProcedure.sorted()
	if len(top) > TopProceduresLimit {
		top = top[:TopProceduresLimit]
	}

	return BatchAggregate{
		TotalRevenue:          total,
		ProcedureCount:        len(records),
		AverageTicket:         avg,
		RevenueByProfessional: byProfessional.sorted(),
		TopProcedures:         top,
	}
}

// ranking accumulates amounts per name, remembering first-seen order.
type ranking struct {
	index   map[string]int
	entries []RankedAmount
}

func newRanking() *ranking {
	return &ranking{index: make(map[string]int)}
}

func (r *ranking) add(name string, amount decimal.Decimal) {
	if i, ok := r.index[name]; ok {
		r.entries[i].Amount = r.entries[i].Amount.Add(amount)
		return
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, RankedAmount{Name: name, Amount: amount})
}

func (r *ranking) sorted() []RankedAmount {
	out := slices.Clone(r.entries)
	if out == nil {
		out = []RankedAmount{}
	}
	slices.SortStableFunc(out, func(a, b RankedAmount) int {
		return b.Amount.Cmp(a.Amount)
	})
	return out
}
