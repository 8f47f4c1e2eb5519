package formats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\ufeff"

// ErrNotText is returned for input that is not UTF-8 text, such as a PDF or
// spreadsheet uploaded in place of a CSV export.
var ErrNotText = errors.New("input is not UTF-8 text")

// ReadRecords tokenizes comma-delimited text. Rows may have differing field
// counts and every cell is trimmed. Blank lines are skipped. Quotes inside an
// unquoted cell are kept as literal characters.
func ReadRecords(text string) ([][]string, error) {
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		return nil, fmt.Errorf("ReadRecords: %w", ErrNotText)
	}
	r := newReader(text)

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadRecords: %w", err)
		}
		records = append(records, trimCells(rec))
	}
	return records, nil
}

// readFirstRecord returns only the first record, tolerating malformed content
// further down the file.
func readFirstRecord(text string) ([]string, error) {
	rec, err := newReader(text).Read()
	if err != nil {
		return nil, err
	}
	return trimCells(rec), nil
}

func newReader(text string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	return r
}

func trimCells(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
