package convert

import (
	"fmt"

	"github.com/nimh-dsst/dataset-browser/entity"
	"github.com/nimh-dsst/dataset-browser/fault"
)

// JoinType selects which unmatched rows survive a join.
type JoinType string

const (
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinInner JoinType = "inner"
	JoinOuter JoinType = "outer"
)

// ParseJoinType validates a join-type name.
func ParseJoinType(name string) (JoinType, error) {
	switch t := JoinType(name); t {
	case JoinLeft, JoinRight, JoinInner, JoinOuter:
		return t, nil
	default:
		return "", fault.New(fault.BadInputCode, fmt.Sprintf("Join type must be one of left, right, inner, outer; got `%s`.", name))
	}
}

// Join performs a hash join of two row sets on leftKey = rightKey.
// Rows with a nil join key never match. Column names that appear on
// both sides (other than being dropped) are disambiguated with _x/_y
// suffixes, left side first. Multiple matches multiply rows.
func Join(left, right entity.Result, leftKey, rightKey string, how JoinType) (entity.Result, error) {
	if err := checkColumn(left, leftKey, "left input"); err != nil {
		return entity.Result{}, err
	}
	if err := checkColumn(right, rightKey, "right input"); err != nil {
		return entity.Result{}, err
	}

	leftNames, rightNames := outputNames(left.Columns, right.Columns)

	out := entity.Result{}
	for _, col := range left.Columns {
		out.Columns = append(out.Columns, leftNames[col])
	}
	for _, col := range right.Columns {
		out.Columns = append(out.Columns, rightNames[col])
	}

	// Index the right side by join key.
	index := make(map[string][]int)
	for i, row := range right.Rows {
		if k, ok := joinKey(row[rightKey]); ok {
			index[k] = append(index[k], i)
		}
	}

	rightMatched := make([]bool, len(right.Rows))

	emit := func(leftRow, rightRow map[string]any) {
		merged := make(map[string]any, len(out.Columns))
		if leftRow != nil {
			for _, col := range left.Columns {
				merged[leftNames[col]] = leftRow[col]
			}
		}
		if rightRow != nil {
			for _, col := range right.Columns {
				merged[rightNames[col]] = rightRow[col]
			}
		}
		out.Rows = append(out.Rows, merged)
	}

	for _, leftRow := range left.Rows {
		var matches []int
		if k, ok := joinKey(leftRow[leftKey]); ok {
			matches = index[k]
		}

		if len(matches) == 0 {
			if how == JoinLeft || how == JoinOuter {
				emit(leftRow, nil)
			}
			continue
		}

		for _, ri := range matches {
			rightMatched[ri] = true
			emit(leftRow, right.Rows[ri])
		}
	}

	if how == JoinRight || how == JoinOuter {
		for i, matched := range rightMatched {
			if !matched {
				emit(nil, right.Rows[i])
			}
		}
	}

	return out, nil
}

func checkColumn(r entity.Result, column, side string) error {
	for _, col := range r.Columns {
		if col == column {
			return nil
		}
	}

	return fault.New(fault.BadInputCode,
		fmt.Sprintf("Column `%s` not found in %s.", column, side)).WithMetadata(map[string]any{
		"available_columns": r.Columns,
	})
}

// outputNames maps each side's column names to their output names,
// suffixing collisions the way pandas merge does.
func outputNames(left, right []string) (map[string]string, map[string]string) {
	inLeft := make(map[string]bool, len(left))
	for _, col := range left {
		inLeft[col] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, col := range right {
		inRight[col] = true
	}

	leftNames := make(map[string]string, len(left))
	for _, col := range left {
		if inRight[col] {
			leftNames[col] = col + "_x"
		} else {
			leftNames[col] = col
		}
	}

	rightNames := make(map[string]string, len(right))
	for _, col := range right {
		if inLeft[col] {
			rightNames[col] = col + "_y"
		} else {
			rightNames[col] = col
		}
	}

	return leftNames, rightNames
}

// joinKey normalizes a cell for key comparison so that an int64 5 from
// the database matches an inferred int64 5 from a file. Nil keys never
// participate.
func joinKey(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprint(int64(n)), true
		}
		return fmt.Sprint(n), true
	default:
		return fmt.Sprint(v), true
	}
}
