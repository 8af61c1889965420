package catalog

import (
	"errors"
	"fmt"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// Target is the admin surface a catalog is applied to. *engine.Engine
// satisfies it.
type Target interface {
	HasCategory(name string) bool
	IndexOf(name string) int
	InsertErrorCategory(index int, c core.ErrorCategory) error
	DefaultPolicy() core.RetryPolicy
	UpdateDefaultPolicy(o *core.PolicyOverride) (core.RetryPolicy, error)
}

// Result summarizes what Apply changed.
type Result struct {
	Added         []string
	Skipped       []string
	PolicyUpdated bool
}

// Apply registers the catalog's categories that are not already present and
// merges its default policy. Categories are applied in file order so a later
// entry may insert_before an earlier one. A failing entry does not stop the
// rest; all failures are returned joined.
func Apply(t Target, cat *Catalog, hooks *remediation.Registry) (Result, error) {
	var (
		res  Result
		errs []error
	)

	if cat.DefaultPolicy != nil {
		o, err := cat.DefaultPolicy.Override()
		if err != nil {
			errs = append(errs, fmt.Errorf("default_policy: %w", err))
		} else if current := t.DefaultPolicy(); current.Merge(o) != current {
			if _, err := t.UpdateDefaultPolicy(o); err != nil {
				errs = append(errs, fmt.Errorf("default_policy: %w", err))
			} else {
				res.PolicyUpdated = true
			}
		}
	}

	for i := range cat.Categories {
		spec := &cat.Categories[i]
		if t.HasCategory(spec.Name) {
			res.Skipped = append(res.Skipped, spec.Name)
			continue
		}

		c, err := spec.Build(hooks)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		index := -1
		if spec.InsertBefore != "" {
			index = t.IndexOf(spec.InsertBefore)
			if index < 0 {
				errs = append(errs, fmt.Errorf("category %q: insert_before references unknown category %q", spec.Name, spec.InsertBefore))
				continue
			}
		}

		if err := t.InsertErrorCategory(index, c); err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", spec.Name, err))
			continue
		}
		res.Added = append(res.Added, spec.Name)
	}

	return res, errors.Join(errs...)
}
