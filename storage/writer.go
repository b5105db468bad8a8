package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nimh-dsst/dataset-browser/fault"
	"github.com/nimh-dsst/dataset-browser/querier"
)

// WriteTable creates (or replaces) a table in the database at dbPath
// and fills it with the given rows. The database file is created when
// it does not exist yet. Column affinities are inferred from the row
// values: all-integer columns become INTEGER, numeric columns REAL,
// everything else TEXT.
func WriteTable(ctx context.Context, dbPath, table string, columns []string, rows []map[string]any, replace bool) error {
	if len(columns) == 0 {
		return fault.New(fault.BadInputCode, "Cannot write a table with no columns.")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	qTable := querier.QuoteIdent(table)

	var exists int
	row := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", table)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("cannot inspect database: %w", err)
	}

	if exists > 0 {
		if !replace {
			return fault.New(fault.BadInputCode, fmt.Sprintf("Table `%s` already exists; pass replace to overwrite it.", table))
		}
		if _, err := db.ExecContext(ctx, "DROP TABLE "+qTable); err != nil {
			return fmt.Errorf("cannot drop table %s: %w", table, err)
		}
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = querier.QuoteIdent(col) + " " + columnAffinity(col, rows)
	}

	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", qTable, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("cannot create table %s: %w", table, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = querier.QuoteIdent(col)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qTable, strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		return fmt.Errorf("cannot prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, r := range rows {
		for i, col := range columns {
			args[i] = r[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("cannot insert row: %w", err)
		}
	}

	return tx.Commit()
}

func columnAffinity(column string, rows []map[string]any) string {
	allInt := true
	allNumeric := true
	seen := false

	for _, r := range rows {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		seen = true

		switch v.(type) {
		case int, int32, int64, bool:
			// go-sqlite3 binds bools as 0/1.
		case float32, float64:
			allInt = false
		default:
			allInt = false
			allNumeric = false
		}
	}

	switch {
	case !seen:
		return "TEXT"
	case allInt:
		return "INTEGER"
	case allNumeric:
		return "REAL"
	default:
		return "TEXT"
	}
}
