package convert

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nimh-dsst/dataset-browser/entity"
	"github.com/nimh-dsst/dataset-browser/fault"
)

// SeparatorFor auto-detects the field separator from the file
// extension: .tsv and .tab are tab-separated, everything else comma.
func SeparatorFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	default:
		return ','
	}
}

// ParseSeparator interprets a user-supplied separator string as its
// first rune, so multi-byte separators survive intact. Returns false
// for the empty string.
func ParseSeparator(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}

	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

// ReadDelimited loads a CSV/TSV file into row form. The first record
// is the header. Column values are inferred per column: all-integer
// columns become int64, numeric columns float64, everything else stays
// string. Empty cells are nil.
func ReadDelimited(path string, sep rune) (entity.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return entity.Result{}, fault.New(fault.NotFoundCode, fmt.Sprintf("File not found: %s.", path)).WithOriginal(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return entity.Result{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return entity.Result{}, fault.New(fault.BadInputCode, fmt.Sprintf("File %s has no header row.", path))
	}

	columns := records[0]
	cells := records[1:]

	result := entity.Result{Columns: columns, Rows: make([]map[string]any, 0, len(cells))}

	for _, record := range cells {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(record) && record[i] != "" {
				row[col] = record[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	for _, col := range columns {
		inferColumn(result.Rows, col)
	}

	return result, nil
}

// inferColumn rewrites string cells in place when the whole column
// parses as integers or floats.
func inferColumn(rows []map[string]any, column string) {
	allInt := true
	allFloat := true
	seen := false

	for _, row := range rows {
		v, ok := row[column]
		if !ok {
			continue
		}
		seen = true

		s := v.(string)
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
		}
	}

	if !seen || (!allInt && !allFloat) {
		return
	}

	for _, row := range rows {
		v, ok := row[column]
		if !ok {
			continue
		}

		s := v.(string)
		if allInt {
			n, _ := strconv.ParseInt(s, 10, 64)
			row[column] = n
		} else {
			n, _ := strconv.ParseFloat(s, 64)
			row[column] = n
		}
	}
}

// WriteTSV writes the result to a tab-separated file with a header
// row. Nil cells become empty fields.
func WriteTSV(path string, result entity.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(result.Columns); err != nil {
		return err
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, col := range result.Columns {
			if v, ok := row[col]; ok && v != nil {
				record[i] = fmt.Sprint(v)
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return f.Close()
}
