package entity

import (
	"math"
	"testing"
)

func TestNumericStats(t *testing.T) {
	result := Result{
		Columns: []string{"name", "age", "score"},
		Rows: []map[string]any{
			{"name": "ada", "age": int64(30), "score": 1.5},
			{"name": "grace", "age": int64(40), "score": 2.5},
			{"name": "annie", "age": nil, "score": 4.0},
		},
	}

	stats := result.NumericStats()
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 columns, got %d", len(stats))
	}

	age := stats[0]
	if age.Column != "age" || age.Count != 2 || age.Mean != 35 || age.Min != 30 || age.Max != 40 {
		t.Fatalf("age stats = %+v", age)
	}

	score := stats[1]
	if score.Column != "score" || score.Count != 3 {
		t.Fatalf("score stats = %+v", score)
	}
	wantStdDev := math.Sqrt(((1.5-score.Mean)*(1.5-score.Mean) + (2.5-score.Mean)*(2.5-score.Mean) + (4.0-score.Mean)*(4.0-score.Mean)) / 2)
	if math.Abs(score.StdDev-wantStdDev) > 1e-12 {
		t.Fatalf("score std dev = %v, want %v", score.StdDev, wantStdDev)
	}
}

func TestNumericStatsSkipsTextColumns(t *testing.T) {
	result := Result{
		Columns: []string{"name"},
		Rows:    []map[string]any{{"name": "ada"}},
	}

	if stats := result.NumericStats(); stats != nil {
		t.Fatalf("expected no stats, got %+v", stats)
	}
}

func TestNumericStatsSingleValueHasZeroStdDev(t *testing.T) {
	result := Result{
		Columns: []string{"n"},
		Rows:    []map[string]any{{"n": int64(7)}},
	}

	stats := result.NumericStats()
	if len(stats) != 1 || stats[0].StdDev != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
