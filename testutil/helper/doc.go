// Package helper provides test doubles for the observability interfaces and SQLite fixtures.
//
// The spies capture calls so that tests can assert on logging, metrics and tracing
// behaviour of the event bus and the unit of work without a real backend.
package helper
