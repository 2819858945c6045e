// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vitalscan/internal/report"
)

// HeaderReportSource names the tier that answered a report lookup.
const HeaderReportSource = "X-Report-Source"

const maxListLimit = 200

type reportList struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50)
	if !ok || limit < 1 || limit > maxListLimit {
		writeError(w, r, http.StatusBadRequest, "bad_request", "limit must be between 1 and 200")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeError(w, r, http.StatusBadRequest, "bad_request", "offset must be a non-negative integer")
		return
	}

	items, total, err := s.reports.List(r.Context(), limit, offset)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportList{Items: items, Total: total, Limit: limit, Offset: offset})
}

// handleGetReport answers with the payload as the service sent it.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if len(rep.Raw) == 0 {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.Raw)
}

func (s *Server) handleGetVisualization(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Normalize(rep))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rep, tier, err := s.reports.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err)
		return nil, false
	}
	w.Header().Set(HeaderReportSource, string(tier))
	return rep, true
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
