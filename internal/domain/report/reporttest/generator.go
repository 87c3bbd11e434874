// Package reporttest builds billing report fixtures for tests: random
// procedure lines from gofakeit and the .xlsx/.csv files the dashboard
// receives from the clinics' billing system.
package reporttest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Line is one billed procedure as it appears in a report.
type Line struct {
	Professional string
	Procedure    string
	Price        decimal.Decimal
}

// Header is the column row of a billing export.
var Header = []string{"Data", "Paciente", "Responsável tecnico", "Procedimento", "Preço"}

// TitleRows are the two lines the billing system prints above the header.
var TitleRows = [][]string{
	{"Relatório de Produção por Procedimento"},
	{"Período: 01/10/2025 a 31/10/2025"},
}

var procedures = []string{
	"Radiografia Panorâmica",
	"Tomografia Cone Beam",
	"Telerradiografia Lateral",
	"Radiografia Periapical",
	"Documentação Ortodôntica",
	"Radiografia Oclusal",
	"Tomografia ATM",
	"Escaneamento Intraoral",
	"Radiografia Interproximal",
	"Fotografia Intraoral",
	"Modelo de Estudo",
	"Laudo Radiológico",
}

// Generator produces random report content.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator with a fixed seed for reproducibility.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Professionals returns n distinct professional names.
func (g *Generator) Professionals(n int) []string {
	seen := make(map[string]bool, n)
	names := make([]string, 0, n)
	for len(names) < n {
		name := "Dr(a). " + g.faker.FirstName() + " " + g.faker.LastName()
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Lines generates count procedure lines spread across the given professionals
// with prices between R$ 50,00 and R$ 2.500,00.
func (g *Generator) Lines(count int, professionals []string) []Line {
	lines := make([]Line, count)
	for i := range lines {
		cents := int64(g.faker.Number(5_000, 250_000))
		lines[i] = Line{
			Professional: professionals[g.faker.Number(0, len(professionals)-1)],
			Procedure:    procedures[g.faker.Number(0, len(procedures)-1)],
			Price:        decimal.New(cents, -2),
		}
	}
	return lines
}

// Patient returns a random patient name for the filler column.
func (g *Generator) Patient() string {
	return g.faker.Name()
}

// Sum adds up the prices of lines.
func Sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return total
}

// BRL renders a price the way the billing export writes it in text cells.
func BRL(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Grid lays lines out as a full sheet: title rows, header, data and an
// optional trailing "Total" row the billing system appends.
func Grid(lines []Line, withTotal bool) [][]any {
	grid := make([][]any, 0, len(lines)+4)
	for _, t := range TitleRows {
		grid = append(grid, toAny(t))
	}
	grid = append(grid, toAny(Header))
	for i, l := range lines {
		price, _ := l.Price.Float64()
		grid = append(grid, []any{"01/10/2025", fmt.Sprintf("Paciente %d", i+1), l.Professional, l.Procedure, price})
	}
	if withTotal {
		total, _ := Sum(lines).Float64()
		grid = append(grid, []any{nil, nil, "Total", nil, total})
	}
	return grid
}

// XLSX writes grid to an in-memory workbook. float64 cells are stored as
// numbers, strings as shared strings.
func XLSX(grid [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, row := range grid {
		for c, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, axis, v); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", axis, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV renders grid as delimited text. Numeric cells are written in pt-BR
// currency notation like the billing system's text export.
func CSV(grid [][]any, delimiter rune) []byte {
	var b strings.Builder
	sep := string(delimiter)
	for _, row := range grid {
		cells := make([]string, len(row))
		for i, v := range row {
			switch val := v.(type) {
			case nil:
			case float64:
				cells[i] = BRL(decimal.NewFromFloat(val))
			default:
				cells[i] = fmt.Sprint(val)
			}
			if strings.Contains(cells[i], sep) {
				cells[i] = `"` + cells[i] + `"`
			}
		}
		b.WriteString(strings.Join(cells, sep))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
