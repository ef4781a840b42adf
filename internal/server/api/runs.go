// Package api provides HTTP API handlers for the run history.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/store"
)

// RunsHandler handles HTTP requests for run resources.
type RunsHandler struct {
	store *store.Store
}

// NewRunsHandler creates a new RunsHandler with the given store.
func NewRunsHandler(s *store.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

// ServeHTTP routes /api/runs, /api/runs/{id} and /api/runs/{id}/ticks.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, id)
		case http.MethodDelete:
			h.delete(w, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case rest == "ticks":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ticks(w, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type listRunsResponse struct {
	Runs  []*store.Run `json:"runs"`
	Count int          `json:"count"`
}

type ticksResponse struct {
	RunID string          `json:"run_id"`
	Ticks []decision.Tick `json:"ticks"`
	Count int             `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/runs?limit=N.
func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Count: len(runs)})
}

// get handles GET /api/runs/{id}.
func (h *RunsHandler) get(w http.ResponseWriter, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// delete handles DELETE /api/runs/{id}.
func (h *RunsHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Runs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ticks handles GET /api/runs/{id}/ticks.
func (h *RunsHandler) ticks(w http.ResponseWriter, id string) {
	if _, err := h.store.Runs().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	ticks, err := h.store.Ticks().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ticks")
		return
	}
	if ticks == nil {
		ticks = []decision.Tick{}
	}

	writeJSON(w, http.StatusOK, ticksResponse{RunID: id, Ticks: ticks, Count: len(ticks)})
}
