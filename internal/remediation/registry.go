package remediation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// StructuralRepairName is the registry name of the built-in structural repair hook.
const StructuralRepairName = "structural_repair"

// DefaultMaxRepairs is the number of repair passes the built-in hook allows.
const DefaultMaxRepairs = 2

// Registry resolves remediators by name so catalogs can reference them.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]core.Remediator
}

// NewRegistry creates a registry containing the built-in hooks.
func NewRegistry() *Registry {
	return &Registry{
		hooks: map[string]core.Remediator{
			StructuralRepairName: NewStructuralRepair(DefaultMaxRepairs),
		},
	}
}

// Register adds or replaces a named hook.
func (r *Registry) Register(name string, hook core.Remediator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = hook
}

// Lookup returns the named hook.
func (r *Registry) Lookup(name string) (core.Remediator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[name]
	if !ok {
		return nil, fmt.Errorf("unknown remediation hook %q", name)
	}
	return hook, nil
}

// Names lists registered hook names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain runs hooks in order. The first veto or error stops the chain.
func Chain(hooks ...core.Remediator) core.Remediator {
	return core.RemediatorFunc(func(err core.FailureError, failure *core.JobFailure) (bool, error) {
		for _, h := range hooks {
			ok, hookErr := h.Attempt(err, failure)
			if hookErr != nil || !ok {
				return false, hookErr
			}
		}
		return true, nil
	})
}
