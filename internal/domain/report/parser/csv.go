package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/sniffer"
)

// readDelimited reads a CSV/TSV export. Every cell stays a string, so prices
// in text reports are always read in pt-BR notation.
func readDelimited(data []byte) ([][]any, error) {
	text := sniffer.NormalizeText(data)

	delimiter, err := sniffer.DetectDelimiter(text)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // title rows have fewer fields

	var grid [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", len(grid)+1, err)
		}

		// encoding/csv drops empty lines; pad them back so row positions
		// match what a spreadsheet would show.
		line, _ := reader.FieldPos(0)
		for len(grid) < line-1 {
			grid = append(grid, nil)
		}

		cells := make([]any, len(record))
		for i, v := range record {
			if strings.TrimSpace(v) == "" {
				continue
			}
			cells[i] = v
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
