package convert

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nimh-dsst/dataset-browser/entity"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transform.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("cannot write script: %v", err)
	}

	return path
}

func TestLuaTransformerRewritesRows(t *testing.T) {
	script := writeScript(t, `
function transform_row(row)
	row["doubled"] = row["n"] * 2
	return row
end
`)

	transformer, err := NewLuaTransformer(script)
	if err != nil {
		t.Fatalf("NewLuaTransformer returned error: %v", err)
	}

	row, keep, err := transformer.TransformRow(map[string]any{"n": float64(21)})
	if err != nil {
		t.Fatalf("TransformRow returned error: %v", err)
	}
	if !keep {
		t.Fatal("row should be kept")
	}

	if row["doubled"] != float64(42) {
		t.Fatalf("doubled = %v, want 42", row["doubled"])
	}
}

func TestLuaTransformerDropsRows(t *testing.T) {
	script := writeScript(t, `
function transform_row(row)
	if row["skip"] == true then
		return nil
	end
	return row
end
`)

	transformer, err := NewLuaTransformer(script)
	if err != nil {
		t.Fatalf("NewLuaTransformer returned error: %v", err)
	}

	result := entity.Result{
		Columns: []string{"name", "skip"},
		Rows: []map[string]any{
			{"name": "keep-me", "skip": false},
			{"name": "drop-me", "skip": true},
		},
	}

	out, err := transformer.Apply(result)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if len(out.Rows) != 1 || out.Rows[0]["name"] != "keep-me" {
		t.Fatalf("Apply kept the wrong rows: %+v", out.Rows)
	}
}

func TestLuaTransformerAddsColumns(t *testing.T) {
	script := writeScript(t, `
function transform_row(row)
	row["source"] = "lua"
	return row
end
`)

	transformer, err := NewLuaTransformer(script)
	if err != nil {
		t.Fatalf("NewLuaTransformer returned error: %v", err)
	}

	result := entity.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": float64(1)}},
	}

	out, err := transformer.Apply(result)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if !reflect.DeepEqual(out.Columns, []string{"id", "source"}) {
		t.Fatalf("columns = %v", out.Columns)
	}

	if out.Rows[0]["source"] != "lua" {
		t.Fatalf("added column missing: %+v", out.Rows[0])
	}
}

func TestLuaTransformerRequiresTransformRow(t *testing.T) {
	script := writeScript(t, `local x = 1`)

	if _, err := NewLuaTransformer(script); err == nil {
		t.Fatal("NewLuaTransformer accepted a script without transform_row")
	}
}

func TestLuaTransformerRejectsBadReturn(t *testing.T) {
	script := writeScript(t, `
function transform_row(row)
	return "not a table"
end
`)

	transformer, err := NewLuaTransformer(script)
	if err != nil {
		t.Fatalf("NewLuaTransformer returned error: %v", err)
	}

	if _, _, err := transformer.TransformRow(map[string]any{}); err == nil {
		t.Fatal("TransformRow accepted a non-table return value")
	}
}
