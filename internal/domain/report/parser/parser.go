// Package parser turns an uploaded billing report into a sequence of rows
// keyed by header name.
//
// Every supported format is first decoded into a grid of cells. The grid is
// then read the same way regardless of its origin: the first two rows hold
// report titles and are skipped, the next populated row holds the headers and
// each populated row after it becomes a Row.
package parser

import (
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/sniffer"
)

// HeaderRow is the 0-based grid row holding the column headers.
const HeaderRow = 2

// Column names the billing export is expected to carry.
const (
	ColumnProfessional = "Responsável tecnico"
	ColumnProcedure    = "Procedimento"
	ColumnPrice        = "Preço"
)

// Row maps a trimmed header to the raw cell value. Numeric spreadsheet cells
// surface as float64, everything else as string. Missing cells are absent.
type Row map[string]any

// Sheet is the decoded first sheet of a report.
type Sheet struct {
	headers  []string
	rows     []Row
	consumed atomic.Bool
}

// Headers returns the non-empty column headers in sheet order.
func (s *Sheet) Headers() []string {
	out := make([]string, len(s.headers))
	copy(out, s.headers)
	return out
}

// Len returns the number of data rows below the header.
func (s *Sheet) Len() int {
	return len(s.rows)
}

// Rows yields each data row once. The sequence cannot be restarted: any
// iteration after the first yields nothing.
func (s *Sheet) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		for _, r := range s.rows {
			if !yield(r) {
				return
			}
		}
	}
}

// Extract decodes a report file. The format is sniffed from the content with
// the filename extension as a hint. Any decoding failure, and any sheet
// without at least one data row under its header, is reported as
// common.ErrFormat.
func Extract(filename string, data []byte) (*Sheet, error) {
	format, err := sniffer.DetectFormat(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrFormat, err)
	}

	var grid [][]any
	switch format {
	case sniffer.FormatXLSX:
		grid, err = readXLSX(data)
	case sniffer.FormatXLS:
		grid, err = readXLS(data)
	default:
		grid, err = readDelimited(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s report: %w", common.ErrFormat, format, err)
	}

	return FromGrid(grid)
}

// FromGrid builds a Sheet from an already decoded grid, e.g. the values of a
// Google Sheets range.
func FromGrid(grid [][]any) (*Sheet, error) {
	var populated [][]any
	for i, cells := range grid {
		if i < HeaderRow || isBlank(cells) {
			continue
		}
		populated = append(populated, cells)
	}
	if len(populated) < 2 {
		return nil, fmt.Errorf("%w: %d populated rows from the header row", common.ErrFormat, len(populated))
	}

	// index of each kept column; empty headers are dropped
	headerCells := populated[0]
	headers := make([]string, 0, len(headerCells))
	columns := make([]int, 0, len(headerCells))
	for i, cell := range headerCells {
		h := headerName(cell)
		if h == "" {
			continue
		}
		headers = append(headers, h)
		columns = append(columns, i)
	}

	rows := make([]Row, 0, len(populated)-1)
	for _, cells := range populated[1:] {
		row := make(Row, len(headers))
		for j, col := range columns {
			if col >= len(cells) || cells[col] == nil {
				continue
			}
			row[headers[j]] = cells[col]
		}
		rows = append(rows, row)
	}

	return &Sheet{headers: headers, rows: rows}, nil
}

func headerName(cell any) string {
	if cell == nil {
		return ""
	}
	var s string
	if str, ok := cell.(string); ok {
		s = str
	} else {
		s = fmt.Sprint(cell)
	}
	return norm.NFC.String(strings.TrimSpace(s))
}

func isBlank(cells []any) bool {
	for _, c := range cells {
		switch v := c.(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}
