package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/matchboard/internal/adapters/repository"
)

// SnapshotProvider defines the interface for getting service statistics.
type SnapshotProvider interface {
	GetStatsSnapshot() map[string]interface{}
}

// OverviewHandler handles service overview requests.
type OverviewHandler struct {
	snapshot SnapshotProvider
}

// NewOverviewHandler creates a new overview handler.
func NewOverviewHandler(snapshot SnapshotProvider) *OverviewHandler {
	return &OverviewHandler{snapshot: snapshot}
}

// HandleOverview handles GET /overview requests.
func (h *OverviewHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.snapshot.GetStatsSnapshot())
}

// PlayerStatsHandler handles per-identity stats requests.
type PlayerStatsHandler struct {
	deps Dependencies
}

// NewPlayerStatsHandler creates a new player stats handler.
func NewPlayerStatsHandler(deps Dependencies) *PlayerStatsHandler {
	return &PlayerStatsHandler{deps: deps}
}

// HandleGetStats handles GET /stats/{identity_or_alias} requests.
func (h *PlayerStatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/stats/")
	if ref == "" || strings.Contains(ref, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	summary, err := h.deps.GetStats(r.Context(), ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
