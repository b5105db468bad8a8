package querier

import (
	"fmt"

	"github.com/nimh-dsst/dataset-browser/fault"
)

// Operator is the closed set of comparison operators supported by the
// filter builder. Unknown operator names are rejected by ParseOperator
// rather than at SQL-build time.
type Operator string

const (
	// OpEquals checks if the column is equal to the value.
	OpEquals Operator = "equals"
	// OpNotEquals checks if the column is not equal to the value.
	OpNotEquals Operator = "not_equals"
	// OpLike checks if the column contains the value (wrapped in % wildcards).
	OpLike Operator = "like"
	// OpNotLike checks if the column does not contain the value.
	OpNotLike Operator = "not_like"
	// OpLessThan checks if the column is strictly less than the numeric value.
	OpLessThan Operator = "less_than"
	// OpLessThanOrEqual checks if the column is less than or equal to the numeric value.
	OpLessThanOrEqual Operator = "less_than_or_equal"
	// OpGreaterThan checks if the column is strictly greater than the numeric value.
	OpGreaterThan Operator = "greater_than"
	// OpGreaterThanOrEqual checks if the column is greater than or equal to the numeric value.
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	// OpIn checks if the column is in a comma-separated list of values.
	OpIn Operator = "in"
	// OpIsNull checks if the column is NULL. Consumes no value.
	OpIsNull Operator = "is_null"
	// OpIsNotNull checks if the column is not NULL. Consumes no value.
	OpIsNotNull Operator = "is_not_null"
)

type operatorSpec struct {
	// sql is the comparison token as it appears in the generated fragment.
	sql string

	// needsValue reports whether the operator binds a parameter.
	needsValue bool

	// numeric reports whether the value is parsed as a float before binding.
	numeric bool
}

var operators = map[Operator]operatorSpec{
	OpEquals:             {sql: "=", needsValue: true},
	OpNotEquals:          {sql: "!=", needsValue: true},
	OpLike:               {sql: "LIKE", needsValue: true},
	OpNotLike:            {sql: "NOT LIKE", needsValue: true},
	OpLessThan:           {sql: "<", needsValue: true, numeric: true},
	OpLessThanOrEqual:    {sql: "<=", needsValue: true, numeric: true},
	OpGreaterThan:        {sql: ">", needsValue: true, numeric: true},
	OpGreaterThanOrEqual: {sql: ">=", needsValue: true, numeric: true},
	OpIn:                 {sql: "IN", needsValue: true},
	OpIsNull:             {sql: "IS NULL"},
	OpIsNotNull:          {sql: "IS NOT NULL"},
}

// ParseOperator validates an operator name against the closed set.
// The empty string is not a valid operator; partially-filled filter rows
// are instead skipped by Compile.
func ParseOperator(name string) (Operator, error) {
	op := Operator(name)
	if _, ok := operators[op]; !ok {
		return "", fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
			"operator": []string{fmt.Sprintf("Operator `%s` is unknown.", name)},
		})
	}

	return op, nil
}

// NeedsValue reports whether the operator consumes a value.
func (op Operator) NeedsValue() bool {
	return operators[op].needsValue
}

// Filter is one user-specified predicate row: a column name, an
// operator, and a value. Value is always carried as a string; numeric
// and list operators parse it while the clause is built. Field names
// are not validated against the table schema here; callers are expected
// to check them against the catalog before executing anything.
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}
