package entity

import "math"

// Result holds the rows returned by a query. Columns preserves the
// column order of the underlying statement since Go maps do not.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// TableInfo describes a single table in the browsed database.
type TableInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// ColumnStats holds basic descriptive statistics for one numeric column.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// NumericStats computes per-column statistics for every column of the
// result that holds at least one numeric value. Non-numeric cells and
// NULLs are skipped.
func (r Result) NumericStats() []ColumnStats {
	var stats []ColumnStats

	for _, col := range r.Columns {
		var values []float64
		for _, row := range r.Rows {
			if v, ok := asFloat(row[col]); ok {
				values = append(values, v)
			}
		}

		if len(values) == 0 {
			continue
		}

		cs := ColumnStats{
			Column: col,
			Count:  len(values),
			Min:    values[0],
			Max:    values[0],
		}

		var sum float64
		for _, v := range values {
			sum += v
			cs.Min = math.Min(cs.Min, v)
			cs.Max = math.Max(cs.Max, v)
		}
		cs.Mean = sum / float64(len(values))

		var sqDiff float64
		for _, v := range values {
			sqDiff += (v - cs.Mean) * (v - cs.Mean)
		}
		if len(values) > 1 {
			// Sample standard deviation
			cs.StdDev = math.Sqrt(sqDiff / float64(len(values)-1))
		}

		stats = append(stats, cs)
	}

	return stats
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
