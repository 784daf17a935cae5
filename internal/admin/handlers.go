// Package admin provides the HTTP handlers for review4d administration:
// browsing and pruning the render log and inspecting the plugin load report.
// Routes are protected by TokenAuth when an admin token is configured.
package admin

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferro-labs/review4d/internal/descriptor"
	"github.com/ferro-labs/review4d/internal/renderlog"
)

// Handlers holds dependencies for admin HTTP handlers. Nil log stores make
// the render endpoints answer 501.
type Handlers struct {
	Logs     renderlog.Reader
	LogAdmin renderlog.Maintainer
	Report   func() descriptor.Report
}

const (
	unknownLabel           = "none"
	statsMaxScannedEntries = 5000
)

// Routes returns a chi.Router with all admin endpoints mounted.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/renders", h.ListRenders)
	r.Delete("/renders", h.deleteRenders)
	r.Get("/renders/stats", h.renderStats)
	r.Get("/plugins", h.plugins)
	return r
}

// ListRenders serves a page of the render log. It is also mounted read-only
// outside the admin routes.
func (h *Handlers) ListRenders(w http.ResponseWriter, r *http.Request) {
	if h.Logs == nil {
		writeError(w, http.StatusNotImplemented, "render log is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: must be a positive integer", "invalid_request_error", "invalid_request")
			return
		}
		if parsed > 200 {
			parsed = 200
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset: must be a non-negative integer", "invalid_request_error", "invalid_request")
			return
		}
		offset = parsed
	}

	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	query := renderlog.Query{
		Limit:      limit,
		Offset:     offset,
		Source:     r.URL.Query().Get("source"),
		PostRender: r.URL.Query().Get("post_render"),
		Status:     r.URL.Query().Get("status"),
		Since:      since,
	}

	result, err := h.Logs.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list render log", "server_error", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": result.Data,
		"summary": map[string]interface{}{
			"total_entries":    result.Total,
			"returned_entries": len(result.Data),
		},
		"filters": map[string]interface{}{
			"limit":       limit,
			"offset":      offset,
			"source":      query.Source,
			"post_render": query.PostRender,
			"status":      query.Status,
			"since":       r.URL.Query().Get("since"),
		},
	})
}

func (h *Handlers) deleteRenders(w http.ResponseWriter, r *http.Request) {
	if h.LogAdmin == nil {
		writeError(w, http.StatusNotImplemented, "render log is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	beforeRaw := r.URL.Query().Get("before")
	if beforeRaw == "" {
		writeError(w, http.StatusBadRequest, "before is required and must be RFC3339 format", "invalid_request_error", "invalid_request")
		return
	}
	before, err := time.Parse(time.RFC3339, beforeRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before: must be RFC3339 format", "invalid_request_error", "invalid_request")
		return
	}

	deleted, err := h.LogAdmin.Delete(r.Context(), renderlog.MaintenanceQuery{
		Before: &before,
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete render log entries", "server_error", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"deleted": deleted,
		"filters": map[string]interface{}{
			"before": beforeRaw,
			"status": r.URL.Query().Get("status"),
		},
	})
}

func (h *Handlers) renderStats(w http.ResponseWriter, r *http.Request) {
	if h.Logs == nil {
		writeError(w, http.StatusNotImplemented, "render log is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	query := renderlog.Query{Limit: 200, Source: r.URL.Query().Get("source"), Since: since}
	result, err := h.Logs.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute render log stats", "server_error", "internal_error")
		return
	}

	entries := make([]renderlog.Entry, 0, min(result.Total, statsMaxScannedEntries))
	entries = append(entries, result.Data...)
	for len(entries) < result.Total && len(entries) < statsMaxScannedEntries {
		query.Offset = len(entries)
		next, err := h.Logs.List(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute render log stats", "server_error", "internal_error")
			return
		}
		if len(next.Data) == 0 {
			break
		}
		if remaining := statsMaxScannedEntries - len(entries); len(next.Data) > remaining {
			next.Data = next.Data[:remaining]
		}
		entries = append(entries, next.Data...)
	}

	byStatus := map[string]int{}
	byPostRender := map[string]int{}
	sources := map[string]struct{}{}
	for _, e := range entries {
		byStatus[e.Status]++
		pr := e.PostRender
		if pr == "" {
			pr = unknownLabel
		}
		byPostRender[pr]++
		sources[e.Source] = struct{}{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"summary": map[string]interface{}{
			"total_entries":  len(entries),
			"failed_entries": byStatus[renderlog.StatusFailed],
			"sources":        len(sources),
			"truncated":      len(entries) < result.Total,
		},
		"by_status":      byStatus,
		"by_post_render": sortedCounts(byPostRender),
	})
}

func (h *Handlers) plugins(w http.ResponseWriter, _ *http.Request) {
	if h.Report == nil {
		writeError(w, http.StatusNotImplemented, "plugin report is not available", "not_implemented_error", "not_implemented")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Report())
}

func parseSince(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since: must be RFC3339 format", "invalid_request_error", "invalid_request")
		return nil, false
	}
	return &parsed, true
}

type countEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// sortedCounts orders counts by count descending, then name.
func sortedCounts(counts map[string]int) []countEntry {
	out := make([]countEntry, 0, len(counts))
	for name, n := range counts {
		out = append(out, countEntry{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
