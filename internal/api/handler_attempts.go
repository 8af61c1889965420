package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/state"
)

// AttemptHandler serves persisted attempt records.
type AttemptHandler struct {
	reader core.AttemptReader
}

// NewAttemptHandler creates a new AttemptHandler. A nil reader makes every
// lookup report unsupported.
func NewAttemptHandler(reader core.AttemptReader) *AttemptHandler {
	return &AttemptHandler{reader: reader}
}

// Get handles GET /ojs/v1/retry/attempts/:id
func (h *AttemptHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		WriteError(w, http.StatusNotImplemented, core.NewUnsupportedError("The configured attempt store does not support reads."))
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.reader.GetAttempt(r.Context(), id)
	if errors.Is(err, state.ErrNotFound) {
		WriteError(w, http.StatusNotFound, core.NewNotFoundError("Attempt record", id))
		return
	}
	if err != nil {
		HandleError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"attempt": rec})
}
