package api

import (
	"net/http"
	"strconv"

	"github.com/nimh-dsst/dataset-browser/querier"
)

type filterInput struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// parseFilters validates operator names up front. Rows missing a field
// or an operator pass through unchanged; the compiler skips them.
func parseFilters(inputs []filterInput) ([]querier.Filter, error) {
	filters := make([]querier.Filter, 0, len(inputs))

	for _, in := range inputs {
		if in.Field == "" || in.Operator == "" {
			filters = append(filters, querier.Filter{Field: in.Field, Value: in.Value})
			continue
		}

		op, err := querier.ParseOperator(in.Operator)
		if err != nil {
			return nil, err
		}

		filters = append(filters, querier.Filter{Field: in.Field, Operator: op, Value: in.Value})
	}

	return filters, nil
}

func (s *server) listTablesHandler(w http.ResponseWriter, r *http.Request) {
	tables := s.storage.Tables(r.Context())

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"tables": tables},
	}, nil)
}

func (s *server) tableInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.storage.TableInfo(r.Context(), r.PathValue("table"))
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"table": info},
	}, nil)
}

const defaultDistinctValuesMax = 50

func (s *server) distinctValuesHandler(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	column := r.URL.Query().Get("column")

	max := defaultDistinctValuesMax
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			max = defaultDistinctValuesMax
		} else {
			max = parsed
		}
	}

	values, err := s.storage.DistinctValues(r.Context(), table, column, max)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"values": values},
	}, nil)
}

type queryTableRequest struct {
	Filters []filterInput `json:"filters"`
	Columns []string      `json:"columns"`
	Limit   int           `json:"limit"`
}

func (s *server) queryTableHandler(w http.ResponseWriter, r *http.Request) {
	var req queryTableRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	filters, err := parseFilters(req.Filters)
	if s.returnOnError(w, r, err) {
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.storage.QueryRowLimit()
	}

	result, displaySQL, err := s.storage.QueryTable(r.Context(), r.PathValue("table"), filters, req.Columns, limit)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"columns":    result.Columns,
			"rows":       result.Rows,
			"statistics": result.NumericStats(),
		},
		Metadata: map[string]any{
			"sql":       displaySQL,
			"row_count": len(result.Rows),
		},
	}, nil)
}

type execQueryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

func (s *server) execQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req execQueryRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.storage.QueryRowLimit()
	}

	result, err := s.storage.ExecQuery(r.Context(), req.SQL, limit)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"columns":    result.Columns,
			"rows":       result.Rows,
			"statistics": result.NumericStats(),
		},
		Metadata: map[string]any{
			"sql":       req.SQL,
			"row_count": len(result.Rows),
		},
	}, nil)
}
