// Package classifier maps raw job errors onto named error categories.
//
// Categories live in an ordered Registry and are evaluated first-match-wins,
// so registration order is part of the contract: a category inserted before
// another claims any message both would match. Reads never lock; writers
// publish a fresh snapshot.
package classifier

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// Registry is an ordered set of error categories.
type Registry struct {
	mu         sync.Mutex // serialises writers
	categories atomic.Pointer[[]core.ErrorCategory]
}

// NewRegistry creates a registry holding the given categories in order.
func NewRegistry(categories ...core.ErrorCategory) (*Registry, error) {
	r := &Registry{}
	empty := []core.ErrorCategory{}
	r.categories.Store(&empty)
	for _, c := range categories {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultRegistry creates a registry preloaded with the built-in categories.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(fmt.Sprintf("classifier: invalid builtin categories: %v", err))
	}
	return r
}

// Classify returns the first category whose patterns match message, or the
// unknown category. It never fails.
func (r *Registry) Classify(message string) core.ErrorCategory {
	return r.ClassifyError(core.FailureError{Message: message})
}

// ClassifyError is Classify with the error code taken into account.
func (r *Registry) ClassifyError(e core.FailureError) core.ErrorCategory {
	for _, c := range *r.categories.Load() {
		if c.Matches(e) {
			return c
		}
	}
	return Unknown()
}

// Add appends a category after all registered ones.
func (r *Registry) Add(c core.ErrorCategory) error {
	return r.Insert(-1, c)
}

// Insert places a category at index, shifting later ones. A negative or
// out-of-range index appends.
func (r *Registry) Insert(index int, c core.ErrorCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.EqualFold(c.Name, core.UnknownCategory) {
		return fmt.Errorf("category name %q is reserved", core.UnknownCategory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.categories.Load()
	for _, existing := range current {
		if strings.EqualFold(existing.Name, c.Name) {
			return fmt.Errorf("%w: %q", ErrDuplicateCategory, c.Name)
		}
	}

	next := make([]core.ErrorCategory, 0, len(current)+1)
	if index < 0 || index >= len(current) {
		next = append(next, current...)
		next = append(next, c)
	} else {
		next = append(next, current[:index]...)
		next = append(next, c)
		next = append(next, current[index:]...)
	}
	r.categories.Store(&next)
	return nil
}

// IndexOf returns the position of the named category, or -1.
func (r *Registry) IndexOf(name string) int {
	for i, c := range *r.categories.Load() {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the named category.
func (r *Registry) Get(name string) (core.ErrorCategory, bool) {
	if strings.EqualFold(name, core.UnknownCategory) {
		return Unknown(), true
	}
	for _, c := range *r.categories.Load() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return core.ErrorCategory{}, false
}

// Categories returns a copy of the registered categories in evaluation order.
func (r *Registry) Categories() []core.ErrorCategory {
	current := *r.categories.Load()
	out := make([]core.ErrorCategory, len(current))
	copy(out, current)
	return out
}

// Names returns the category names in evaluation order.
func (r *Registry) Names() []string {
	current := *r.categories.Load()
	names := make([]string, len(current))
	for i, c := range current {
		names[i] = c.Name
	}
	return names
}

// Unknown returns the fallback category: retryable, default policy.
func Unknown() core.ErrorCategory {
	return core.ErrorCategory{
		Name:      core.UnknownCategory,
		Retryable: true,
	}
}
