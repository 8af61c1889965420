// Package scheduler runs periodic background tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openjobspec/ojs-retry/internal/catalog"
	"github.com/openjobspec/ojs-retry/internal/metrics"
)

// DefaultCatalogReloadSpec is the catalog reload schedule used when none is configured.
const DefaultCatalogReloadSpec = "@every 1m"

// taskTimeout bounds a single task run.
const taskTimeout = 10 * time.Second

// Standard 5-field cron plus descriptors like "@every 30s".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}

type task struct {
	name     string
	schedule cron.Schedule
	fn       func(context.Context) error
}

// Scheduler runs background tasks for the retry server.
type Scheduler struct {
	tasks    []task
	stop     chan struct{}
	stopOnce sync.Once
	started  bool
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a new Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// Add registers fn to run on the cron schedule spec. Tasks must be added
// before Start.
func (s *Scheduler) Add(name, spec string, fn func(context.Context) error) error {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}
	s.add(name, schedule, fn)
	return nil
}

func (s *Scheduler) add(name string, schedule cron.Schedule, fn func(context.Context) error) {
	s.tasks = append(s.tasks, task{name: name, schedule: schedule, fn: fn})
}

// Start begins all background scheduling goroutines.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(t)
	}
}

// Stop signals all background goroutines to stop and waits for running
// tasks to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Scheduler) runLoop(t task) {
	defer s.wg.Done()

	for {
		now := time.Now()
		timer := time.NewTimer(t.schedule.Next(now).Sub(now))

		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			if err := t.fn(ctx); err != nil {
				s.logger.Error("scheduler loop error", "loop", t.name, "error", err)
			}
			cancel()
		}
	}
}

// Reloader re-applies a catalog. *catalog.Reloader satisfies it.
type Reloader interface {
	Reload() (catalog.Result, bool, error)
}

// CatalogReloadTask returns a task that reloads the catalog and counts the
// outcome.
func CatalogReloadTask(r Reloader) func(context.Context) error {
	return func(context.Context) error {
		_, changed, err := r.Reload()
		switch {
		case err != nil:
			metrics.CatalogReloads.WithLabelValues("error").Inc()
			return err
		case changed:
			metrics.CatalogReloads.WithLabelValues("applied").Inc()
		default:
			metrics.CatalogReloads.WithLabelValues("unchanged").Inc()
		}
		return nil
	}
}
