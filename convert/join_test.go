package convert

import (
	"reflect"
	"testing"

	"github.com/nimh-dsst/dataset-browser/entity"
)

func sampleLeft() entity.Result {
	return entity.Result{
		Columns: []string{"id", "name"},
		Rows: []map[string]any{
			{"id": int64(1), "name": "ada"},
			{"id": int64(2), "name": "grace"},
			{"id": int64(3), "name": "edsger"},
		},
	}
}

func sampleRight() entity.Result {
	return entity.Result{
		Columns: []string{"person_id", "score"},
		Rows: []map[string]any{
			{"person_id": int64(1), "score": int64(90)},
			{"person_id": int64(2), "score": int64(85)},
			{"person_id": int64(4), "score": int64(70)},
		},
	}
}

func TestJoin(t *testing.T) {
	tests := map[string]struct {
		how      JoinType
		wantRows int
	}{
		"inner keeps matches only":       {how: JoinInner, wantRows: 2},
		"left keeps unmatched left":      {how: JoinLeft, wantRows: 3},
		"right keeps unmatched right":    {how: JoinRight, wantRows: 3},
		"outer keeps unmatched of both":  {how: JoinOuter, wantRows: 4},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			joined, err := Join(sampleLeft(), sampleRight(), "id", "person_id", tt.how)
			if err != nil {
				t.Fatalf("Join returned error: %v", err)
			}

			if len(joined.Rows) != tt.wantRows {
				t.Fatalf("Join(%s) returned %d rows, want %d", tt.how, len(joined.Rows), tt.wantRows)
			}

			wantColumns := []string{"id", "name", "person_id", "score"}
			if !reflect.DeepEqual(joined.Columns, wantColumns) {
				t.Fatalf("Join(%s) columns = %v, want %v", tt.how, joined.Columns, wantColumns)
			}
		})
	}
}

func TestJoinMatchedValues(t *testing.T) {
	joined, err := Join(sampleLeft(), sampleRight(), "id", "person_id", JoinInner)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	for _, row := range joined.Rows {
		if row["id"] != row["person_id"] {
			t.Fatalf("joined row has mismatched keys: %+v", row)
		}
	}
}

func TestJoinUnmatchedCellsAreNil(t *testing.T) {
	joined, err := Join(sampleLeft(), sampleRight(), "id", "person_id", JoinOuter)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	var sawUnmatchedLeft, sawUnmatchedRight bool
	for _, row := range joined.Rows {
		if row["name"] == "edsger" {
			sawUnmatchedLeft = true
			if row["score"] != nil {
				t.Fatalf("unmatched left row should have nil right cells: %+v", row)
			}
		}
		if row["person_id"] == int64(4) {
			sawUnmatchedRight = true
			if row["name"] != nil {
				t.Fatalf("unmatched right row should have nil left cells: %+v", row)
			}
		}
	}

	if !sawUnmatchedLeft || !sawUnmatchedRight {
		t.Fatalf("outer join lost unmatched rows: %+v", joined.Rows)
	}
}

func TestJoinMultipleMatchesMultiply(t *testing.T) {
	right := entity.Result{
		Columns: []string{"person_id", "visit"},
		Rows: []map[string]any{
			{"person_id": int64(1), "visit": "baseline"},
			{"person_id": int64(1), "visit": "followup"},
		},
	}

	joined, err := Join(sampleLeft(), right, "id", "person_id", JoinInner)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	if len(joined.Rows) != 2 {
		t.Fatalf("expected one output row per match, got %d", len(joined.Rows))
	}
}

func TestJoinSuffixesCollidingColumns(t *testing.T) {
	left := entity.Result{
		Columns: []string{"id", "value"},
		Rows:    []map[string]any{{"id": int64(1), "value": "a"}},
	}
	right := entity.Result{
		Columns: []string{"id", "value"},
		Rows:    []map[string]any{{"id": int64(1), "value": "b"}},
	}

	joined, err := Join(left, right, "id", "id", JoinInner)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	wantColumns := []string{"id_x", "value_x", "id_y", "value_y"}
	if !reflect.DeepEqual(joined.Columns, wantColumns) {
		t.Fatalf("columns = %v, want %v", joined.Columns, wantColumns)
	}

	row := joined.Rows[0]
	if row["value_x"] != "a" || row["value_y"] != "b" {
		t.Fatalf("suffixed values are wrong: %+v", row)
	}
}

func TestJoinMissingKeyColumn(t *testing.T) {
	if _, err := Join(sampleLeft(), sampleRight(), "nope", "person_id", JoinInner); err == nil {
		t.Fatal("Join accepted a missing left key column")
	}

	if _, err := Join(sampleLeft(), sampleRight(), "id", "nope", JoinInner); err == nil {
		t.Fatal("Join accepted a missing right key column")
	}
}

func TestJoinNilKeysNeverMatch(t *testing.T) {
	left := entity.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": nil}},
	}
	right := entity.Result{
		Columns: []string{"key"},
		Rows:    []map[string]any{{"key": nil}},
	}

	joined, err := Join(left, right, "id", "key", JoinInner)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	if len(joined.Rows) != 0 {
		t.Fatalf("nil keys must not match, got %+v", joined.Rows)
	}
}

func TestParseJoinType(t *testing.T) {
	for _, name := range []string{"left", "right", "inner", "outer"} {
		if _, err := ParseJoinType(name); err != nil {
			t.Fatalf("ParseJoinType(%q) returned error: %v", name, err)
		}
	}

	if _, err := ParseJoinType("cross"); err == nil {
		t.Fatal("ParseJoinType accepted an unknown join type")
	}
}
