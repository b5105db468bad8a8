package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nimh-dsst/dataset-browser/querier"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.sqlite")

	columns := []string{"id", "name", "age", "city"}
	rows := []map[string]any{
		{"id": int64(1), "name": "ada", "age": int64(36), "city": "london"},
		{"id": int64(2), "name": "grace", "age": int64(45), "city": "arlington"},
		{"id": int64(3), "name": "edsger", "age": int64(28), "city": nil},
		{"id": int64(4), "name": "annie", "age": int64(19), "city": "london"},
	}

	if err := WriteTable(ctx, path, "people", columns, rows, true); err != nil {
		t.Fatalf("WriteTable returned error: %v", err)
	}

	st, err := NewSQLiteStorage(SQLiteStorageConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStorage returned error: %v", err)
	}

	if err := st.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func TestTables(t *testing.T) {
	st := newTestStorage(t)

	tables := st.Tables(context.Background())
	if !reflect.DeepEqual(tables, []string{"people"}) {
		t.Fatalf("Tables() = %v, want [people]", tables)
	}
}

func TestTableInfo(t *testing.T) {
	st := newTestStorage(t)

	info, err := st.TableInfo(context.Background(), "people")
	if err != nil {
		t.Fatalf("TableInfo returned error: %v", err)
	}

	if info.RowCount != 4 {
		t.Fatalf("RowCount = %d, want 4", info.RowCount)
	}

	if !reflect.DeepEqual(info.Columns, []string{"id", "name", "age", "city"}) {
		t.Fatalf("Columns = %v", info.Columns)
	}
}

func TestTableInfoUnknownTable(t *testing.T) {
	st := newTestStorage(t)

	if _, err := st.TableInfo(context.Background(), "nope"); err == nil {
		t.Fatal("TableInfo accepted an unknown table")
	}
}

func TestQueryTable(t *testing.T) {
	st := newTestStorage(t)

	tests := map[string]struct {
		filters   []querier.Filter
		wantNames []string
	}{
		"no filters returns everything": {
			filters:   nil,
			wantNames: []string{"ada", "grace", "edsger", "annie"},
		},
		"numeric filter": {
			filters:   []querier.Filter{{Field: "age", Operator: querier.OpGreaterThan, Value: "30"}},
			wantNames: []string{"ada", "grace"},
		},
		"like filter": {
			filters:   []querier.Filter{{Field: "name", Operator: querier.OpLike, Value: "an"}},
			wantNames: []string{"annie"},
		},
		"null filter": {
			filters:   []querier.Filter{{Field: "city", Operator: querier.OpIsNull}},
			wantNames: []string{"edsger"},
		},
		"conjunction": {
			filters: []querier.Filter{
				{Field: "city", Operator: querier.OpEquals, Value: "london"},
				{Field: "age", Operator: querier.OpLessThan, Value: "30"},
			},
			wantNames: []string{"annie"},
		},
		"in filter": {
			filters:   []querier.Filter{{Field: "id", Operator: querier.OpIn, Value: "1, 3"}},
			wantNames: []string{"ada", "edsger"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result, _, err := st.QueryTable(context.Background(), "people", tt.filters, nil, 0)
			if err != nil {
				t.Fatalf("QueryTable returned error: %v", err)
			}

			var names []string
			for _, row := range result.Rows {
				names = append(names, row["name"].(string))
			}

			if !reflect.DeepEqual(names, tt.wantNames) {
				t.Fatalf("names = %v, want %v", names, tt.wantNames)
			}
		})
	}
}

func TestQueryTableDisplaySQL(t *testing.T) {
	st := newTestStorage(t)

	filters := []querier.Filter{{Field: "name", Operator: querier.OpLike, Value: "an"}}

	_, displaySQL, err := st.QueryTable(context.Background(), "people", filters, nil, 500)
	if err != nil {
		t.Fatalf("QueryTable returned error: %v", err)
	}

	want := `SELECT * FROM "people" WHERE "name" LIKE '%an%' LIMIT 500`
	if displaySQL != want {
		t.Fatalf("display SQL = %q, want %q", displaySQL, want)
	}
}

func TestQueryTableSelectColumns(t *testing.T) {
	st := newTestStorage(t)

	result, _, err := st.QueryTable(context.Background(), "people", nil, []string{"name", "age"}, 0)
	if err != nil {
		t.Fatalf("QueryTable returned error: %v", err)
	}

	if !reflect.DeepEqual(result.Columns, []string{"name", "age"}) {
		t.Fatalf("columns = %v", result.Columns)
	}

	if _, _, err := st.QueryTable(context.Background(), "people", nil, []string{"name", "nope"}, 0); err == nil {
		t.Fatal("QueryTable accepted an unknown select column")
	}
}

func TestQueryTableLimit(t *testing.T) {
	st := newTestStorage(t)

	result, _, err := st.QueryTable(context.Background(), "people", nil, nil, 2)
	if err != nil {
		t.Fatalf("QueryTable returned error: %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
}

func TestExecQuery(t *testing.T) {
	st := newTestStorage(t)

	result, err := st.ExecQuery(context.Background(), "SELECT name FROM people WHERE age > 30 ORDER BY name", 500)
	if err != nil {
		t.Fatalf("ExecQuery returned error: %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
}

func TestExecQueryAppendsLimit(t *testing.T) {
	st := newTestStorage(t)

	result, err := st.ExecQuery(context.Background(), "SELECT * FROM people", 2)
	if err != nil {
		t.Fatalf("ExecQuery returned error: %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("expected the default limit to apply, got %d rows", len(result.Rows))
	}
}

func TestExecQueryBadSQLIsUserError(t *testing.T) {
	st := newTestStorage(t)

	_, err := st.ExecQuery(context.Background(), "SELEKT broken", 500)
	if err == nil {
		t.Fatal("ExecQuery accepted invalid SQL")
	}

	if !strings.Contains(err.Error(), "Query failed") {
		t.Fatalf("expected a query-validation error, got %v", err)
	}
}

func TestDistinctValues(t *testing.T) {
	st := newTestStorage(t)

	values, err := st.DistinctValues(context.Background(), "people", "city", 50)
	if err != nil {
		t.Fatalf("DistinctValues returned error: %v", err)
	}

	if !reflect.DeepEqual(values, []string{"arlington", "london"}) {
		t.Fatalf("values = %v", values)
	}

	// Cardinality above max yields nil, not an error.
	values, err = st.DistinctValues(context.Background(), "people", "name", 2)
	if err != nil {
		t.Fatalf("DistinctValues returned error: %v", err)
	}
	if values != nil {
		t.Fatalf("high-cardinality column should return nil, got %v", values)
	}
}

func TestWriteTableRefusesToClobber(t *testing.T) {
	st := newTestStorage(t)

	err := WriteTable(context.Background(), st.Path(), "people", []string{"a"}, nil, false)
	if err == nil {
		t.Fatal("WriteTable overwrote an existing table without replace")
	}
}
