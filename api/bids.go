package api

import (
	"net/http"
	"strings"

	"github.com/nimh-dsst/dataset-browser/bids"
	"github.com/nimh-dsst/dataset-browser/fault"
)

// bidsSelection reads the datatype/suffix multi-select parameters.
// Values are comma-separated, e.g. ?datatypes=anat,func&suffixes=bold.
func bidsSelection(r *http.Request) bids.Selection {
	return bids.Selection{
		Datatypes: splitParam(r.URL.Query().Get("datatypes")),
		Suffixes:  splitParam(r.URL.Query().Get("suffixes")),
	}
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}

	var values []string
	for piece := range strings.SplitSeq(raw, ",") {
		if v := strings.TrimSpace(piece); v != "" {
			values = append(values, v)
		}
	}

	return values
}

func (s *server) requireBids(w http.ResponseWriter, r *http.Request) bool {
	if s.bids == nil {
		s.handleError(w, r, fault.New(fault.NotFoundCode, "BIDS browsing is not configured."))
		return false
	}

	return true
}

func (s *server) bidsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireBids(w, r) {
		return
	}

	sel := bidsSelection(r)

	acquisitions, err := s.bids.Summary(r.Context(), sel)
	if s.returnOnError(w, r, err) {
		return
	}

	datatypes, err := s.bids.Datatypes(r.Context())
	if s.returnOnError(w, r, err) {
		return
	}

	suffixes, err := s.bids.Suffixes(r.Context())
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"acquisitions": acquisitions,
			"datatypes":    datatypes,
			"suffixes":     suffixes,
		},
	}, nil)
}

func (s *server) bidsParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireBids(w, r) {
		return
	}

	participants, err := s.bids.Participants(r.Context(), bidsSelection(r))
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"participants": participants,
			"count":        len(participants),
		},
	}, nil)
}

func (s *server) bidsParticipantsTSVHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireBids(w, r) {
		return
	}

	participants, err := s.bids.Participants(r.Context(), bidsSelection(r))
	if s.returnOnError(w, r, err) {
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", `attachment; filename="participants.tsv"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.bids.ParticipantsTSV(participants))) //nolint:errcheck
}
