package domain

import (
	"slices"
)

// AggregateRoot is an entity which records domain events while its state changes.
// It is not safe for concurrent use, like the aggregate it is embedded in.
type AggregateRoot[ID comparable] struct {
	EntityBase[ID]

	events []any
}

// EventSource is implemented by every aggregate embedding AggregateRoot.
type EventSource interface {
	PendingEvents() []any
	ClearEvents()
}

// Raise records event as pending.
func (a *AggregateRoot[ID]) Raise(event any) {
	if event == nil {
		return
	}

	a.events = append(a.events, event)
}

// PendingEvents returns the events raised since the last ClearEvents, oldest first.
func (a *AggregateRoot[ID]) PendingEvents() []any {
	return slices.Clone(a.events)
}

// ClearEvents drops all pending events.
func (a *AggregateRoot[ID]) ClearEvents() {
	a.events = nil
}
