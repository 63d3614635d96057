// Package domain provides base types for domain models: entities with an identity, aggregate roots
// that collect domain events, and an immutable event envelope.
//
// Aggregate events are meant to be published after the unit of work that persisted the aggregate
// committed:
//
//	unit.OnCommitted(domain.AfterCommit(bus, &order))
package domain
