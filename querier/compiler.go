package querier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nimh-dsst/dataset-browser/fault"
)

// Predicate holds a parameterized WHERE fragment and its bound
// arguments. The number of `?` placeholders in Clause (not counting
// any `?` inside quoted identifiers) always equals len(Args), and
// placeholders appear in the same left-to-right order as the
// arguments.
type Predicate struct {
	Clause string
	Args   []any
}

// IsEmpty reports whether the predicate applies no filtering at all.
func (p Predicate) IsEmpty() bool {
	return p.Clause == ""
}

// Compile translates a sequence of filters into a single conjunctive
// predicate. Filters missing a field or an operator are skipped, and an
// `in` filter whose list is empty after trimming contributes nothing;
// if every filter is skipped the returned predicate is empty. Only
// values are ever parameterized - column names are quoted as
// identifiers, never bound.
func Compile(filters []Filter) (Predicate, error) {
	var parts []string
	var args []any

	for _, f := range filters {
		if f.Field == "" || f.Operator == "" {
			continue
		}

		spec, ok := operators[f.Operator]
		if !ok {
			return Predicate{}, fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
				"operator": []string{fmt.Sprintf("Operator `%s` is unknown.", f.Operator)},
			})
		}

		ident := quoteIdent(f.Field)

		switch {
		case !spec.needsValue:
			parts = append(parts, fmt.Sprintf("%s %s", ident, spec.sql))

		case f.Operator == OpIn:
			var values []any
			for piece := range strings.SplitSeq(f.Value, ",") {
				if v := strings.TrimSpace(piece); v != "" {
					values = append(values, v)
				}
			}

			// All pieces blank: the whole condition is dropped rather
			// than generating `IN ()`.
			if len(values) == 0 {
				continue
			}

			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
			parts = append(parts, fmt.Sprintf("%s IN (%s)", ident, placeholders))
			args = append(args, values...)

		case spec.numeric:
			var v float64
			if f.Value != "" {
				var err error
				v, err = strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
				if err != nil {
					return Predicate{}, fault.New(
						fault.BadInputCode,
						fmt.Sprintf("Value `%s` for field `%s` is not numeric (operator `%s`).", f.Value, f.Field, f.Operator),
					).WithMetadata(fault.FieldErrorsMetadata{
						f.Field: []string{fmt.Sprintf("Operator `%s` requires a numeric value.", f.Operator)},
					})
				}
			}

			parts = append(parts, fmt.Sprintf("%s %s ?", ident, spec.sql))
			args = append(args, v)

		case f.Operator == OpLike || f.Operator == OpNotLike:
			parts = append(parts, fmt.Sprintf("%s %s ?", ident, spec.sql))
			args = append(args, "%"+f.Value+"%")

		default:
			parts = append(parts, fmt.Sprintf("%s %s ?", ident, spec.sql))
			args = append(args, f.Value)
		}
	}

	if len(parts) == 0 {
		return Predicate{}, nil
	}

	return Predicate{Clause: strings.Join(parts, " AND "), Args: args}, nil
}

// Render substitutes the bound arguments into the clause for display.
// String values become single-quoted SQL literals with embedded quotes
// doubled; everything else uses its natural string form. The result is
// only ever shown to humans, never executed.
//
// Compile guarantees placeholder/argument parity, so a mismatch here is
// a defect in the builder itself and panics instead of returning an error.
//
// A `?` inside a double-quoted identifier is part of the name, not a
// placeholder, so quote state is tracked while walking the clause.
func Render(clause string, args []any) string {
	var b strings.Builder
	next := 0
	inIdent := false

	for _, r := range clause {
		if r == '"' {
			inIdent = !inIdent
		}

		if r != '?' || inIdent {
			b.WriteRune(r)
			continue
		}

		if next >= len(args) {
			panic(fmt.Sprintf("querier: clause %q has more placeholders than the %d bound arguments", clause, len(args)))
		}

		b.WriteString(formatLiteral(args[next]))
		next++
	}

	if next != len(args) {
		panic(fmt.Sprintf("querier: clause %q consumed %d of %d bound arguments", clause, next, len(args)))
	}

	return b.String()
}

func formatLiteral(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	return fmt.Sprint(v)
}

// quoteIdent quotes a column or table name for identifier safety.
// Identifiers are interpolated, not parameterized, so embedded double
// quotes are doubled.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdent is the exported form used by collaborators that build the
// surrounding SELECT statement.
func QuoteIdent(name string) string {
	return quoteIdent(name)
}
