package sqs

import (
	"context"
	"errors"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// Fanout publishes every event to each of its publishers. A failing
// publisher does not stop the others.
type Fanout []core.EventPublisher

// PublishRetryEvent implements core.EventPublisher.
func (f Fanout) PublishRetryEvent(ctx context.Context, event *core.RetryEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishRetryEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
