package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nimh-dsst/dataset-browser/entity"
	"github.com/nimh-dsst/dataset-browser/fault"
	"github.com/nimh-dsst/dataset-browser/querier"
)

type SQLiteStorageConfig struct {
	// Path is the location of the .sqlite file to browse.
	Path string `yaml:"path"`

	// QueryRowLimit caps the number of rows a browsing query returns
	// when the caller does not specify its own limit. Zero means 500.
	QueryRowLimit int `yaml:"query_row_limit"`
}

const defaultQueryRowLimit = 500

func (c SQLiteStorageConfig) Validate() error {
	if c.Path == "" {
		return errors.New("storage path is required")
	}

	return nil
}

// SQLiteStorage serves catalog lookups and filtered queries against a
// single SQLite database file.
type SQLiteStorage struct {
	cfg SQLiteStorageConfig
	db  *sql.DB

	tableMutex sync.RWMutex
	tableNames []string
}

func NewSQLiteStorage(cfg SQLiteStorageConfig) (*SQLiteStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.QueryRowLimit <= 0 {
		cfg.QueryRowLimit = defaultQueryRowLimit
	}

	return &SQLiteStorage{cfg: cfg}, nil
}

func (s *SQLiteStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := os.Stat(s.cfg.Path); err != nil {
		return fault.New(fault.NotFoundCode, fmt.Sprintf("Database file not found: %s.", s.cfg.Path)).WithOriginal(err)
	}

	db, err := sql.Open("sqlite3", s.cfg.Path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("cannot ping database: %w", err)
	}

	s.db = db

	if err := s.reloadTableNames(ctx); err != nil {
		db.Close()
		return err
	}

	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.cfg.Path
}

// QueryRowLimit returns the default row cap for browsing queries.
func (s *SQLiteStorage) QueryRowLimit() int {
	return s.cfg.QueryRowLimit
}

func (s *SQLiteStorage) reloadTableNames(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return fmt.Errorf("cannot list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.tableMutex.Lock()
	s.tableNames = names
	s.tableMutex.Unlock()

	return nil
}

// Tables returns the cached table names. The cache is filled on Connect
// and refreshed by the watcher when the database file changes.
func (s *SQLiteStorage) Tables(ctx context.Context) []string {
	s.tableMutex.RLock()
	defer s.tableMutex.RUnlock()

	return slices.Clone(s.tableNames)
}

func (s *SQLiteStorage) hasTable(name string) bool {
	s.tableMutex.RLock()
	defer s.tableMutex.RUnlock()

	return slices.Contains(s.tableNames, name)
}

// checkTable resolves a user-supplied table name against the catalog.
// Table names are interpolated into SQL as identifiers, so unknown
// names are refused instead of quoted.
func (s *SQLiteStorage) checkTable(name string) error {
	if !s.hasTable(name) {
		return fault.New(fault.NotFoundCode, fmt.Sprintf("Table `%s` does not exist.", name))
	}

	return nil
}

// Columns returns the ordered column names of a table.
func (s *SQLiteStorage) Columns(ctx context.Context, table string) ([]string, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", querier.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("cannot read table info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}

	return columns, rows.Err()
}

// TableInfo returns the columns and row count of a table.
func (s *SQLiteStorage) TableInfo(ctx context.Context, table string) (entity.TableInfo, error) {
	columns, err := s.Columns(ctx, table)
	if err != nil {
		return entity.TableInfo{}, err
	}

	var count int64
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", querier.QuoteIdent(table)))
	if err := row.Scan(&count); err != nil {
		return entity.TableInfo{}, fmt.Errorf("cannot count rows: %w", err)
	}

	return entity.TableInfo{Name: table, Columns: columns, RowCount: count}, nil
}

// DistinctValues returns the sorted distinct non-null values of a
// column, but only when the column's cardinality does not exceed max.
// High-cardinality columns return nil so the UI falls back to free
// text instead of waiting on a huge dropdown.
func (s *SQLiteStorage) DistinctValues(ctx context.Context, table, column string, max int) ([]string, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return nil, err
	}

	qTable := querier.QuoteIdent(table)
	qColumn := querier.QuoteIdent(column)

	var count int
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL", qColumn, qTable, qColumn))
	if err := row.Scan(&count); err != nil {
		return nil, fmt.Errorf("cannot count distinct values: %w", err)
	}

	if count == 0 || count > max {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT %d",
		qColumn, qTable, qColumn, qColumn, max))
	if err != nil {
		return nil, fmt.Errorf("cannot fetch distinct values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, fmt.Sprint(normalizeValue(v)))
	}

	return values, rows.Err()
}

func (s *SQLiteStorage) checkColumn(ctx context.Context, table, column string) error {
	columns, err := s.Columns(ctx, table)
	if err != nil {
		return err
	}

	if !slices.Contains(columns, column) {
		return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
			"column": []string{fmt.Sprintf("Column `%s` does not exist in table `%s`.", column, table)},
		})
	}

	return nil
}

// QueryTable runs a filtered SELECT against a table. Select columns, if
// given, are validated against the table's actual columns. limit <= 0
// means no LIMIT clause at all (used by exports); callers that want the
// browsing default pass QueryRowLimit(). The second return value is the
// display form of the executed statement with literal values
// substituted in; it is never executed.
func (s *SQLiteStorage) QueryTable(ctx context.Context, table string, filters []querier.Filter, selectColumns []string, limit int) (entity.Result, string, error) {
	if err := s.checkTable(table); err != nil {
		return entity.Result{}, "", err
	}

	pred, err := querier.Compile(filters)
	if err != nil {
		return entity.Result{}, "", err
	}

	selectList := "*"
	if len(selectColumns) > 0 {
		tableColumns, err := s.Columns(ctx, table)
		if err != nil {
			return entity.Result{}, "", err
		}

		var quoted []string
		for _, col := range selectColumns {
			if !slices.Contains(tableColumns, col) {
				return entity.Result{}, "", fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
					"columns": []string{fmt.Sprintf("Column `%s` does not exist in table `%s`.", col, table)},
				})
			}
			quoted = append(quoted, querier.QuoteIdent(col))
		}
		selectList = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectList, querier.QuoteIdent(table))
	if !pred.IsEmpty() {
		query += " WHERE " + pred.Clause
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	displayQuery := fmt.Sprintf("SELECT %s FROM %s", selectList, querier.QuoteIdent(table))
	if !pred.IsEmpty() {
		displayQuery += " WHERE " + querier.Render(pred.Clause, pred.Args)
	}
	if limit > 0 {
		displayQuery += fmt.Sprintf(" LIMIT %d", limit)
	}

	result, err := s.collectRows(ctx, query, pred.Args)
	if err != nil {
		return entity.Result{}, displayQuery, err
	}

	return result, displayQuery, nil
}

// ExecQuery runs an ad-hoc SQL statement typed by the user. When the
// statement carries no LIMIT of its own and limit is positive, one is
// appended. SQL errors are user errors here, not server defects.
func (s *SQLiteStorage) ExecQuery(ctx context.Context, query string, limit int) (entity.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return entity.Result{}, fault.New(fault.BadInputCode, "Query cannot be empty.")
	}

	if limit > 0 && !strings.Contains(strings.ToUpper(query), "LIMIT") {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	result, err := s.collectRows(ctx, query, nil)
	if err != nil {
		return entity.Result{}, fault.New(fault.BadInputCode, fmt.Sprintf("Query failed: %v.", err)).WithOriginal(err)
	}

	return result, nil
}

// Query runs a statement built by a trusted collaborator (identifiers
// already validated or quoted) with bound arguments. User-typed SQL
// goes through ExecQuery instead.
func (s *SQLiteStorage) Query(ctx context.Context, query string, args []any) (entity.Result, error) {
	return s.collectRows(ctx, query, args)
}

func (s *SQLiteStorage) collectRows(ctx context.Context, query string, args []any) (entity.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return entity.Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return entity.Result{}, err
	}

	result := entity.Result{Columns: columns, Rows: []map[string]any{}}

	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return entity.Result{}, err
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, record)
	}

	return result, rows.Err()
}

// normalizeValue makes scanned values JSON-friendly: byte slices become
// strings, everything else passes through.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
