package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openjobspec/ojs-retry/internal/classifier"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/state"
)

// ErrorResponse wraps an OJS error for JSON serialization.
type ErrorResponse struct {
	Error *core.OJSError `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", core.OJSMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an OJS-formatted error response. The request id set by
// OJSHeaders is copied into the body.
func WriteError(w http.ResponseWriter, status int, err *core.OJSError) {
	if err.RequestID == "" {
		err.RequestID = w.Header().Get("X-Request-Id")
	}
	WriteJSON(w, status, ErrorResponse{Error: err})
}

// StatusForCode maps an OJS error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case core.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case core.ErrCodeValidationError:
		return http.StatusUnprocessableEntity
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	case core.ErrCodeConflict:
		return http.StatusConflict
	case core.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// WriteOJSError maps an OJSError to the appropriate HTTP status code and writes it.
func WriteOJSError(w http.ResponseWriter, err *core.OJSError) {
	WriteError(w, StatusForCode(err.Code), err)
}

// HandleError maps an error to the appropriate HTTP status and writes it.
func HandleError(w http.ResponseWriter, err error) {
	var ojsErr *core.OJSError
	switch {
	case errors.As(err, &ojsErr):
		WriteOJSError(w, ojsErr)
	case errors.Is(err, classifier.ErrDuplicateCategory):
		WriteError(w, http.StatusConflict, core.NewConflictError(err.Error(), nil))
	case errors.Is(err, state.ErrNotFound):
		WriteError(w, http.StatusNotFound, &core.OJSError{Code: core.ErrCodeNotFound, Message: err.Error()})
	default:
		WriteError(w, http.StatusInternalServerError, core.NewInternalError(err.Error()))
	}
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) *core.OJSError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.NewInvalidRequestError("Invalid JSON in request body.", map[string]any{"cause": err.Error()})
	}
	return nil
}
