package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/matchboard/pkg/metrics"
)

// apiKeyHeader authenticates uploaders on the ingestion path.
const apiKeyHeader = "X-API-Key"

// SubmissionsHandler handles match submission requests.
type SubmissionsHandler struct {
	deps Dependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps Dependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		writeError(w, http.StatusUnauthorized, "missing_api_key", NewKind(op, ErrUnauthorized))
		return
	}
	uploader, err := h.deps.ResolveAPIKey(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid_api_key", NewKind(op, ErrUnauthorized))
		return
	}

	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordSubmissionRejected()
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordSubmissionRejected()
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	sub := req.toModel()
	sub.UploaderID = uploader.ID
	sub.Roster = h.deps.TagUploaderRoster(r.Context(), uploader.ID, sub.Roster)

	if ok := h.deps.EnqueueSubmission(r.Context(), sub); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
