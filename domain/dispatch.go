package domain

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/uow-eventbus-go/eventbus"
)

// ErrDispatchFailed is joined with the publish errors of DispatchEvents.
var ErrDispatchFailed = errors.New("dispatching domain events failed")

// DispatchEvents publishes the pending events of all sources on bus, in order, and clears them.
// Events are cleared before publishing, so handlers raising new events do not see them replayed.
// Publishing continues after a failed event; all failures are returned joined.
func DispatchEvents(ctx context.Context, bus *eventbus.Bus, sources ...EventSource) error {
	var pending []any

	for _, source := range sources {
		if source == nil {
			continue
		}

		pending = append(pending, source.PendingEvents()...)
		source.ClearEvents()
	}

	var errs []error

	for _, event := range pending {
		if err := bus.Publish(ctx, event, nil); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrDispatchFailed}, errs...)...)
	}

	return nil
}

// AfterCommit returns a hook for unitofwork.Unit.OnCommitted which dispatches the events of sources.
func AfterCommit(bus *eventbus.Bus, sources ...EventSource) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return DispatchEvents(ctx, bus, sources...)
	}
}
