package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/nimh-dsst/dataset-browser/entity"
	"github.com/nimh-dsst/dataset-browser/fault"
)

// ReadParquet loads a single parquet file into row form.
func ReadParquet(ctx context.Context, path string) (entity.Result, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return entity.Result{}, fmt.Errorf("cannot open parquet file %s: %w", path, err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		return entity.Result{}, fmt.Errorf("cannot read parquet file %s: %w", path, err)
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return entity.Result{}, fmt.Errorf("cannot decode parquet file %s: %w", path, err)
	}
	defer table.Release()

	return tableToResult(table), nil
}

// ReadParquetGlob loads every parquet file matching the glob pattern
// and concatenates them, unioning columns by name in first-seen order.
func ReadParquetGlob(ctx context.Context, pattern string) (entity.Result, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return entity.Result{}, fault.New(fault.BadInputCode, fmt.Sprintf("Invalid glob pattern: %s.", pattern)).WithOriginal(err)
	}

	var paths []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".parquet") {
			paths = append(paths, m)
		}
	}

	if len(paths) == 0 {
		return entity.Result{}, fault.New(fault.NotFoundCode, fmt.Sprintf("No parquet files found for glob pattern: %s.", pattern))
	}

	var combined entity.Result
	for _, path := range paths {
		part, err := ReadParquet(ctx, path)
		if err != nil {
			return entity.Result{}, err
		}
		combined = Concat(combined, part)
	}

	return combined, nil
}

// Concat appends the rows of b to a. Columns present in only one input
// stay in the output; missing cells are nil.
func Concat(a, b entity.Result) entity.Result {
	out := entity.Result{Columns: append([]string(nil), a.Columns...)}

	seen := make(map[string]bool, len(a.Columns))
	for _, col := range a.Columns {
		seen[col] = true
	}
	for _, col := range b.Columns {
		if !seen[col] {
			seen[col] = true
			out.Columns = append(out.Columns, col)
		}
	}

	out.Rows = append(out.Rows, a.Rows...)
	out.Rows = append(out.Rows, b.Rows...)

	return out
}

func tableToResult(table arrow.Table) entity.Result {
	numCols := int(table.NumCols())
	numRows := int(table.NumRows())

	result := entity.Result{
		Columns: make([]string, numCols),
		Rows:    make([]map[string]any, numRows),
	}
	for i := range result.Rows {
		result.Rows[i] = make(map[string]any, numCols)
	}

	for c := 0; c < numCols; c++ {
		name := table.Schema().Field(c).Name
		result.Columns[c] = name

		rowIdx := 0
		for _, chunk := range table.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				result.Rows[rowIdx][name] = arrowValue(chunk, i)
				rowIdx++
			}
		}
	}

	return result
}

// arrowValue converts one cell of an arrow array to a plain Go value
// suitable for SQLite binding and JSON encoding.
func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Timestamp:
		return a.Value(i).ToTime(a.DataType().(*arrow.TimestampType).Unit).UTC().Format("2006-01-02T15:04:05.999Z07:00")
	default:
		return arr.ValueStr(i)
	}
}
