package catalog

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// Reloader re-applies a catalog file when its contents change.
type Reloader struct {
	path   string
	target Target
	hooks  *remediation.Registry
	logger *slog.Logger

	mu     sync.Mutex
	digest [sha256.Size]byte
	loaded bool
}

// NewReloader creates a reloader for the catalog at path.
func NewReloader(path string, target Target, hooks *remediation.Registry, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{path: path, target: target, hooks: hooks, logger: logger}
}

// Path returns the catalog file path.
func (r *Reloader) Path() string {
	return r.path
}

// Reload applies the catalog if the file changed since the last successful
// reload. changed is false when the file was unchanged. A missing file is not
// an error.
func (r *Reloader) Reload() (res Result, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("failed to read catalog: %w", err)
	}

	digest := sha256.Sum256(data)
	if r.loaded && digest == r.digest {
		return Result{}, false, nil
	}

	cat, err := Parse(data)
	if err != nil {
		return Result{}, false, err
	}

	res, err = Apply(r.target, cat, r.hooks)
	if err != nil {
		r.logger.Warn("catalog applied with errors", "path", r.path, "error", err)
	} else {
		r.digest = digest
		r.loaded = true
	}
	r.logger.Info("catalog applied",
		"path", r.path,
		"added", len(res.Added),
		"skipped", len(res.Skipped),
		"policy_updated", res.PolicyUpdated,
	)
	return res, true, err
}
