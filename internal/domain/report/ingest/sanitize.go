// Package ingest validates extracted report rows and reduces them to the
// per-batch revenue aggregates shown on a unit's dashboard.
package ingest

import (
	"fmt"
	"iter"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/parser"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/money"
)

// summaryProfessional marks the footer row billing exports append.
const summaryProfessional = "total"

// ProcedureRecord is one valid billed procedure.
type ProcedureRecord struct {
	Professional string
	Procedure    string
	Price        decimal.Decimal
}

// SanitizeStats counts how many rows each filter dropped.
type SanitizeStats struct {
	Rows                int `json:"rows"`
	Kept                int `json:"kept"`
	InvalidPrice        int `json:"invalidPrice"`
	MissingProfessional int `json:"missingProfessional"`
	SummaryRows         int `json:"summaryRows"`
}

// Dropped returns the number of rows that did not become records.
func (s SanitizeStats) Dropped() int {
	return s.InvalidPrice + s.MissingProfessional + s.SummaryRows
}

// Sanitize filters rows into procedure records, in order:
//  1. the price is read through money.ParseBRL and rows with a zero,
//     negative or unreadable price are dropped;
//  2. rows without a professional are dropped;
//  3. the "Total" footer row is dropped.
//
// Surviving rows keep their original order. A batch with no surviving rows,
// or whose prices add up to zero, fails with common.ErrEmptyBatch.
func Sanitize(rows iter.Seq[parser.Row]) ([]ProcedureRecord, error) {
	records, stats := SanitizeWithStats(rows)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, %d dropped", common.ErrEmptyBatch, stats.Rows, stats.Dropped())
	}
	return records, nil
}

// SanitizeWithStats applies the same filters as Sanitize and also returns the
// per-filter counts. It never fails; an empty result is left to the caller.
func SanitizeWithStats(rows iter.Seq[parser.Row]) ([]ProcedureRecord, SanitizeStats) {
	var (
		records []ProcedureRecord
		stats   SanitizeStats
	)

	for row := range rows {
		stats.Rows++

		price := money.ParseBRL(row[parser.ColumnPrice])
		if !price.IsPositive() {
			stats.InvalidPrice++
			continue
		}

		professional := cellText(row[parser.ColumnProfessional])
		if professional == "" {
			stats.MissingProfessional++
			continue
		}
		if strings.EqualFold(professional, summaryProfessional) {
			stats.SummaryRows++
			continue
		}

		records = append(records, ProcedureRecord{
			Professional: professional,
			Procedure:    cellText(row[parser.ColumnProcedure]),
			Price:        price,
		})
	}

	stats.Kept = len(records)
	return records, stats
}

func cellText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return decimal.NewFromFloat(s).String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
