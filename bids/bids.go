// Package bids answers the participant-dashboard questions about
// bids2table metadata stored in the browsed database: which
// acquisitions exist, and which participants have them. Filtering goes
// through the same filter compiler the table browser uses.
package bids

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimh-dsst/dataset-browser/entity"
	"github.com/nimh-dsst/dataset-browser/querier"
	"github.com/nimh-dsst/dataset-browser/storage"
)

type Config struct {
	// Table holds the bids2table rows. Defaults to "data", the table
	// name the parquet converter writes.
	Table string `yaml:"table"`

	// Column names of the bids2table export. The defaults match
	// bids2table's flattened naming.
	DatasetColumn  string `yaml:"dataset_column"`
	SubjectColumn  string `yaml:"subject_column"`
	DatatypeColumn string `yaml:"datatype_column"`
	SuffixColumn   string `yaml:"suffix_column"`
	TaskColumn     string `yaml:"task_column"`
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = "data"
	}
	if c.DatasetColumn == "" {
		c.DatasetColumn = "ds__dataset"
	}
	if c.SubjectColumn == "" {
		c.SubjectColumn = "ent__sub"
	}
	if c.DatatypeColumn == "" {
		c.DatatypeColumn = "ent__datatype"
	}
	if c.SuffixColumn == "" {
		c.SuffixColumn = "ent__suffix"
	}
	if c.TaskColumn == "" {
		c.TaskColumn = "ent__task"
	}
	return c
}

// Selection narrows summaries and participant lists to specific
// datatypes and/or suffixes. Empty slices mean "no constraint".
type Selection struct {
	Datatypes []string
	Suffixes  []string
}

// Acquisition is one (datatype, suffix, task) combination and the
// number of distinct participants that have it.
type Acquisition struct {
	Datatype string `json:"datatype"`
	Suffix   string `json:"suffix"`
	Task     string `json:"task"`
	Count    int64  `json:"count"`
}

// Participant is one (dataset, subject) pair.
type Participant struct {
	Dataset string `json:"dataset"`
	Subject string `json:"subject"`
}

type Browser struct {
	cfg Config
	st  *storage.SQLiteStorage
}

func NewBrowser(cfg Config, st *storage.SQLiteStorage) *Browser {
	return &Browser{cfg: cfg.withDefaults(), st: st}
}

// selectionFilters expresses the datatype/suffix multi-selects as
// filter-compiler `in` filters.
func (b *Browser) selectionFilters(sel Selection) []querier.Filter {
	var filters []querier.Filter

	if len(sel.Datatypes) > 0 {
		filters = append(filters, querier.Filter{
			Field:    b.cfg.DatatypeColumn,
			Operator: querier.OpIn,
			Value:    strings.Join(sel.Datatypes, ","),
		})
	}

	if len(sel.Suffixes) > 0 {
		filters = append(filters, querier.Filter{
			Field:    b.cfg.SuffixColumn,
			Operator: querier.OpIn,
			Value:    strings.Join(sel.Suffixes, ","),
		})
	}

	return filters
}

// distinctTupleQuery builds the inner SELECT DISTINCT over the five
// identifying columns, with the selection predicate applied.
func (b *Browser) distinctTupleQuery(sel Selection) (string, []any, error) {
	pred, err := querier.Compile(b.selectionFilters(sel))
	if err != nil {
		return "", nil, err
	}

	cols := []string{
		querier.QuoteIdent(b.cfg.DatasetColumn),
		querier.QuoteIdent(b.cfg.DatatypeColumn),
		querier.QuoteIdent(b.cfg.SuffixColumn),
		querier.QuoteIdent(b.cfg.TaskColumn),
		querier.QuoteIdent(b.cfg.SubjectColumn),
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", strings.Join(cols, ", "), querier.QuoteIdent(b.cfg.Table))
	if !pred.IsEmpty() {
		query += " WHERE " + pred.Clause
	}

	return query, pred.Args, nil
}

// Summary returns the acquisition combinations present under the
// selection, each with its distinct participant count.
func (b *Browser) Summary(ctx context.Context, sel Selection) ([]Acquisition, error) {
	inner, args, err := b.distinctTupleQuery(sel)
	if err != nil {
		return nil, err
	}

	qDatatype := querier.QuoteIdent(b.cfg.DatatypeColumn)
	qSuffix := querier.QuoteIdent(b.cfg.SuffixColumn)
	qTask := querier.QuoteIdent(b.cfg.TaskColumn)

	query := fmt.Sprintf(
		"SELECT %[1]s, %[2]s, %[3]s, COUNT(*) AS count FROM (%[4]s) GROUP BY %[1]s, %[2]s, %[3]s ORDER BY %[1]s, %[2]s, %[3]s",
		qDatatype, qSuffix, qTask, inner,
	)

	result, err := b.query(ctx, query, args)
	if err != nil {
		return nil, err
	}

	acquisitions := make([]Acquisition, 0, len(result.Rows))
	for _, row := range result.Rows {
		acquisitions = append(acquisitions, Acquisition{
			Datatype: stringValue(row[b.cfg.DatatypeColumn]),
			Suffix:   stringValue(row[b.cfg.SuffixColumn]),
			Task:     stringValue(row[b.cfg.TaskColumn]),
			Count:    intValue(row["count"]),
		})
	}

	return acquisitions, nil
}

// Participants returns the distinct (dataset, subject) pairs under the
// selection, sorted by dataset then subject.
func (b *Browser) Participants(ctx context.Context, sel Selection) ([]Participant, error) {
	inner, args, err := b.distinctTupleQuery(sel)
	if err != nil {
		return nil, err
	}

	qDataset := querier.QuoteIdent(b.cfg.DatasetColumn)
	qSubject := querier.QuoteIdent(b.cfg.SubjectColumn)

	query := fmt.Sprintf(
		"SELECT DISTINCT %[1]s, %[2]s FROM (%[3]s) ORDER BY %[1]s, %[2]s",
		qDataset, qSubject, inner,
	)

	result, err := b.query(ctx, query, args)
	if err != nil {
		return nil, err
	}

	participants := make([]Participant, 0, len(result.Rows))
	for _, row := range result.Rows {
		participants = append(participants, Participant{
			Dataset: stringValue(row[b.cfg.DatasetColumn]),
			Subject: stringValue(row[b.cfg.SubjectColumn]),
		})
	}

	return participants, nil
}

// Datatypes returns the sorted distinct datatypes for the dropdown.
func (b *Browser) Datatypes(ctx context.Context) ([]string, error) {
	return b.distinct(ctx, b.cfg.DatatypeColumn)
}

// Suffixes returns the sorted distinct suffixes for the dropdown.
func (b *Browser) Suffixes(ctx context.Context) ([]string, error) {
	return b.distinct(ctx, b.cfg.SuffixColumn)
}

func (b *Browser) distinct(ctx context.Context, column string) ([]string, error) {
	qColumn := querier.QuoteIdent(column)
	query := fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s",
		qColumn, querier.QuoteIdent(b.cfg.Table),
	)

	result, err := b.query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		values = append(values, stringValue(row[column]))
	}

	return values, nil
}

func (b *Browser) query(ctx context.Context, query string, args []any) (entity.Result, error) {
	return b.st.Query(ctx, query, args)
}

// ParticipantsTSV renders the participant list the way the dashboard's
// download button does: the header row carries the configured column
// names, so the file round-trips against the source table.
func (b *Browser) ParticipantsTSV(participants []Participant) string {
	var sb strings.Builder
	sb.WriteString(b.cfg.DatasetColumn)
	sb.WriteByte('\t')
	sb.WriteString(b.cfg.SubjectColumn)
	sb.WriteByte('\n')
	for _, p := range participants {
		sb.WriteString(p.Dataset)
		sb.WriteByte('\t')
		sb.WriteString(p.Subject)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
