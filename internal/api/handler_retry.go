package api

import (
	"net/http"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
)

// RetryHandler exposes retry decisions and classification over HTTP.
type RetryHandler struct {
	engine *engine.Engine
}

// NewRetryHandler creates a new RetryHandler.
func NewRetryHandler(e *engine.Engine) *RetryHandler {
	return &RetryHandler{engine: e}
}

// DecideResponse carries the decision and the payload as left by
// remediation hooks, which the caller should store with the retried job.
type DecideResponse struct {
	Decision core.RetryDecision `json:"decision"`
	Payload  map[string]any     `json:"payload,omitempty"`
}

// Decide handles POST /ojs/v1/retry/decide
func (h *RetryHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var failure core.JobFailure
	if ojsErr := decodeBody(r, &failure); ojsErr != nil {
		WriteError(w, http.StatusBadRequest, ojsErr)
		return
	}

	if failure.JobID == "" {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("job_id is required.", nil))
		return
	}
	if failure.AttemptsMade < 0 {
		WriteError(w, http.StatusUnprocessableEntity, core.NewValidationError(
			"attempts_made must be >= 0.",
			map[string]any{"attempts_made": failure.AttemptsMade},
		))
		return
	}

	decision := h.engine.Decide(r.Context(), &failure)
	WriteJSON(w, http.StatusOK, DecideResponse{Decision: decision, Payload: failure.Payload})
}

// ClassifyResponse describes the category an error falls into.
type ClassifyResponse struct {
	Category        string           `json:"category"`
	Retryable       bool             `json:"retryable"`
	Policy          core.RetryPolicy `json:"policy"`
	DeadLetterAfter int              `json:"dead_letter_after"`
}

// Classify handles POST /ojs/v1/retry/classify
func (h *RetryHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var fe core.FailureError
	if ojsErr := decodeBody(r, &fe); ojsErr != nil {
		WriteError(w, http.StatusBadRequest, ojsErr)
		return
	}
	if fe.Message == "" && fe.Code == "" {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("message or code is required.", nil))
		return
	}

	c := h.engine.Classify(fe)
	WriteJSON(w, http.StatusOK, ClassifyResponse{
		Category:        c.Name,
		Retryable:       c.Retryable,
		Policy:          h.engine.EffectivePolicy(c),
		DeadLetterAfter: c.DeadLetterThreshold(),
	})
}
