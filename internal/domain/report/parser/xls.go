package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
)

// readXLS reads the first sheet of a legacy BIFF8 workbook.
func readXLS(data []byte) (grid [][]any, err error) {
	// The BIFF decoder indexes record offsets straight from the file and can
	// panic on truncated input.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("malformed xls file: %v", r)
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xls file: %w", err)
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read first sheet: %w", err)
	}

	for _, row := range sheet.GetRows() {
		cols := row.GetCols()
		cells := make([]any, len(cols))
		for i, col := range cols {
			cells[i] = xlsCellValue(col)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// xlsCellValue keeps numeric records as float64. Cell records are identified
// by their type name (e.g. "*record.Number", "*record.LabelSSt").
func xlsCellValue(cell structure.CellData) any {
	if cell == nil {
		return nil
	}
	kind := cell.GetType()
	switch {
	case strings.HasSuffix(kind, "Blank"):
		return nil
	case strings.HasSuffix(kind, ".Number"), strings.HasSuffix(kind, ".Rk"):
		return cell.GetFloat64()
	}
	s := cell.GetString()
	if s == "" {
		return nil
	}
	return s
}
