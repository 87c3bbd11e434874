// Package sniffer identifies the container format of an uploaded report and,
// for delimited text, its delimiter and character encoding.
package sniffer

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Format is the detected report container.
type Format int

const (
	FormatDelimited Format = iota
	FormatXLSX
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "delimited"
	}
}

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

var (
	zipMagic = []byte("PK\x03\x04")
	// OLE2 compound document, used by BIFF8 workbooks.
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// maxSniffLines bounds how far delimiter detection looks into the file.
const maxSniffLines = 20

// DetectFormat inspects the leading bytes of data and falls back to the
// filename extension when the content is not conclusive.
func DetectFormat(filename string, data []byte) (Format, error) {
	if len(data) == 0 {
		return FormatDelimited, ErrEmptyFile
	}

	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return FormatDelimited, nil
	}
}

// NormalizeText strips a UTF-8 BOM and decodes Windows-1252 (a superset of
// Latin-1 for printable text) when the payload is not valid UTF-8.
func NormalizeText(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}

	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		decoded, _, err = transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
		if err != nil {
			return data
		}
	}
	return decoded
}

func stripUTF8BOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
}

// DetectDelimiter returns the delimiter that splits the most lines into the
// most fields. Report exports start with title rows that rarely contain a
// delimiter, so every sampled line votes.
func DetectDelimiter(text []byte) (rune, error) {
	if len(bytes.TrimSpace(text)) == 0 {
		return 0, ErrEmptyFile
	}

	totals := make(map[rune]int)
	lines := strings.Split(string(text), "\n")
	for i, line := range lines {
		if i >= maxSniffLines {
			break
		}
		line = cleanLine(line)
		if line == "" {
			continue
		}
		d, count := detectDelimiter(line)
		if count > 0 {
			totals[d] += count
		}
	}

	best, bestCount := rune(0), 0
	for _, d := range delimiters {
		if totals[d] > bestCount {
			best, bestCount = d, totals[d]
		}
	}
	if best == 0 {
		return 0, ErrInvalidDelimiter
	}
	return best, nil
}

var delimiters = []rune{';', '\t', ',', '|'}

func cleanLine(line string) string {
	return strings.TrimSpace(strings.TrimRight(line, "\r"))
}

func detectDelimiter(line string) (rune, int) {
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}
