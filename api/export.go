package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nimh-dsst/dataset-browser/convert"
	"github.com/nimh-dsst/dataset-browser/fault"
)

type exportTableRequest struct {
	Filters []filterInput `json:"filters"`

	// Columns limits the export when SelectedOnly is set.
	Columns      []string `json:"columns"`
	SelectedOnly bool     `json:"selected_only"`

	// Directory to write into; falls back to the configured export dir.
	Directory string `json:"directory"`
}

// exportTableHandler re-runs the filtered query without a row limit and
// writes the full result to a timestamped TSV file, alongside a text
// file holding the display SQL that produced it.
func (s *server) exportTableHandler(w http.ResponseWriter, r *http.Request) {
	var req exportTableRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	dir := req.Directory
	if dir == "" {
		dir = s.cfg.ExportDir
	}
	if dir == "" {
		s.handleError(w, r, fault.New(fault.BadInputCode, "No export directory given and none configured."))
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.handleError(w, r, fmt.Errorf("cannot create export directory: %w", err))
		return
	}

	filters, err := parseFilters(req.Filters)
	if s.returnOnError(w, r, err) {
		return
	}

	var columns []string
	if req.SelectedOnly {
		columns = req.Columns
		if len(columns) == 0 {
			s.handleError(w, r, fault.New(fault.BadInputCode, "Selected-columns-only export requires at least one column."))
			return
		}
	}

	// limit 0 means no LIMIT clause: exports carry every matching row.
	result, displaySQL, err := s.storage.QueryTable(r.Context(), r.PathValue("table"), filters, columns, 0)
	if s.returnOnError(w, r, err) {
		return
	}

	basename := time.Now().Format("20060102_150405") + "_dataset_browser_export"
	tsvPath := filepath.Join(dir, basename+".tsv")
	queryPath := filepath.Join(dir, basename+"_query.txt")

	if err := convert.WriteTSV(tsvPath, result); err != nil {
		s.handleError(w, r, fmt.Errorf("cannot write export file: %w", err))
		return
	}

	if err := os.WriteFile(queryPath, []byte(displaySQL), 0o644); err != nil {
		s.handleError(w, r, fmt.Errorf("cannot write query file: %w", err))
		return
	}

	s.logger.Info("exported table", "table", r.PathValue("table"), "rows", len(result.Rows), "path", tsvPath)

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"tsv_path":   tsvPath,
			"query_path": queryPath,
			"row_count":  len(result.Rows),
			"columns":    result.Columns,
		},
		Metadata: map[string]any{"sql": displaySQL},
	}, nil)
}
