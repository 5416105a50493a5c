package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/matchboard/internal/adapters/repository"
)

// IdentitiesHandler handles identity registration and alias linking.
type IdentitiesHandler struct {
	deps Dependencies
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(deps Dependencies) *IdentitiesHandler {
	return &IdentitiesHandler{deps: deps}
}

type identityRequest struct {
	DisplayName string `json:"display_name"`
}

type aliasRequest struct {
	Alias   string `json:"alias"`
	Primary bool   `json:"primary"`
}

type aliasResponse struct {
	Status string `json:"status"`
	Linked bool   `json:"linked"`
}

// HandlePostIdentity handles POST /identities requests.
func (h *IdentitiesHandler) HandlePostIdentity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_identity"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		writeError(w, http.StatusBadRequest, "missing_display_name", NewKind(op, ErrBadRequest))
		return
	}
	identity, err := h.deps.RegisterIdentity(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, identity)
}

// HandlePostAlias handles POST /identities/{id}/aliases requests.
func (h *IdentitiesHandler) HandlePostAlias(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_alias"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/identities/")
	identityID, rest, found := strings.Cut(path, "/")
	if !found || rest != "aliases" || identityID == "" {
		http.NotFound(w, r)
		return
	}
	var req aliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Alias) == "" {
		writeError(w, http.StatusBadRequest, "missing_alias", NewKind(op, ErrBadRequest))
		return
	}

	if req.Primary {
		if err := h.deps.BindPrimaryAlias(r.Context(), identityID, req.Alias); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
				return
			}
			if errors.Is(err, repository.ErrAliasTaken) {
				writeError(w, http.StatusConflict, "alias_taken", Wrap(op, err))
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, aliasResponse{Status: "bound", Linked: true})
		return
	}

	linked, err := h.deps.RegisterAlias(r.Context(), identityID, req.Alias)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	status := "linked"
	if !linked {
		status = "kept_existing"
	}
	writeJSON(w, http.StatusOK, aliasResponse{Status: status, Linked: linked})
}
