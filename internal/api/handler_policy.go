package api

import (
	"net/http"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
)

// PolicyHandler reads and updates the global default retry policy.
type PolicyHandler struct {
	engine *engine.Engine
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(e *engine.Engine) *PolicyHandler {
	return &PolicyHandler{engine: e}
}

// Get handles GET /ojs/v1/retry/policy
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"policy": h.engine.DefaultPolicy()})
}

// Update handles PATCH /ojs/v1/retry/policy. Omitted fields keep their value.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var o core.PolicyOverride
	if ojsErr := decodeBody(r, &o); ojsErr != nil {
		WriteError(w, http.StatusBadRequest, ojsErr)
		return
	}

	policy, err := h.engine.UpdateDefaultPolicy(&o)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"policy": policy})
}
