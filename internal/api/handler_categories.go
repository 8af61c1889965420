package api

import (
	"net/http"

	"github.com/openjobspec/ojs-retry/internal/catalog"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// CategoryHandler lists and registers error categories.
type CategoryHandler struct {
	engine *engine.Engine
	hooks  *remediation.Registry
}

// NewCategoryHandler creates a new CategoryHandler. hooks resolves
// remediation names in registration requests.
func NewCategoryHandler(e *engine.Engine, hooks *remediation.Registry) *CategoryHandler {
	if hooks == nil {
		hooks = remediation.NewRegistry()
	}
	return &CategoryHandler{engine: e, hooks: hooks}
}

// CategoryView is the wire form of a registered category.
type CategoryView struct {
	Name            string           `json:"name"`
	Position        int              `json:"position"`
	Patterns        []string         `json:"patterns"`
	Codes           []string         `json:"codes"`
	Retryable       bool             `json:"retryable"`
	Policy          core.RetryPolicy `json:"policy"`
	DeadLetterAfter int              `json:"dead_letter_after"`
	Remediation     bool             `json:"remediation"`
}

func (h *CategoryHandler) view(c core.ErrorCategory, position int) CategoryView {
	codes := c.Codes
	if codes == nil {
		codes = []string{}
	}
	return CategoryView{
		Name:            c.Name,
		Position:        position,
		Patterns:        c.PatternStrings(),
		Codes:           codes,
		Retryable:       c.Retryable,
		Policy:          h.engine.EffectivePolicy(c),
		DeadLetterAfter: c.DeadLetterThreshold(),
		Remediation:     c.Remediator != nil,
	}
}

// List handles GET /ojs/v1/retry/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := h.engine.Categories()
	views := make([]CategoryView, 0, len(categories))
	for i, c := range categories {
		views = append(views, h.view(c, i))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"categories":   views,
		"remediations": h.hooks.Names(),
	})
}

// Create handles POST /ojs/v1/retry/categories. The body uses the catalog
// category format; delays accept PT2S or 2s.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec catalog.CategorySpec
	if ojsErr := decodeBody(r, &spec); ojsErr != nil {
		WriteError(w, http.StatusBadRequest, ojsErr)
		return
	}

	c, err := spec.Build(h.hooks)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, core.NewValidationError(err.Error(), nil))
		return
	}

	index := -1
	if spec.InsertBefore != "" {
		index = h.engine.IndexOf(spec.InsertBefore)
		if index < 0 {
			WriteError(w, http.StatusUnprocessableEntity, core.NewValidationError(
				"insert_before references an unknown category.",
				map[string]any{"insert_before": spec.InsertBefore},
			))
			return
		}
	}

	if err := h.engine.InsertErrorCategory(index, c); err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Location", "/ojs/v1/retry/categories")
	WriteJSON(w, http.StatusCreated, map[string]any{"category": h.view(c, h.engine.IndexOf(c.Name))})
}
