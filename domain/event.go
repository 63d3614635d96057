package domain

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is an immutable envelope around a domain event payload.
// The event bus routes it by its full type, so handlers subscribe to Event[P] for a concrete P.
type Event[P any] struct {
	id         uuid.UUID
	source     string
	payload    P
	occurredAt time.Time
}

type eventJSON[P any] struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    P         `json:"payload"`
}

// NewEvent builds an event raised by source, occurring now.
func NewEvent[P any](source string, payload P) Event[P] {
	return NewEventAt(source, payload, time.Now())
}

// NewEventAt builds an event raised by source at occurredAt.
func NewEventAt[P any](source string, payload P, occurredAt time.Time) Event[P] {
	return Event[P]{
		id:         NewID(),
		source:     source,
		payload:    payload,
		occurredAt: occurredAt.UTC(),
	}
}

func (e Event[P]) ID() uuid.UUID {
	return e.id
}

// Source identifies what raised the event, typically the aggregate id.
func (e Event[P]) Source() string {
	return e.source
}

func (e Event[P]) Payload() P {
	return e.payload
}

func (e Event[P]) OccurredAt() time.Time {
	return e.occurredAt
}

// PayloadJSON returns the JSON encoding of the payload.
func (e Event[P]) PayloadJSON() ([]byte, error) {
	return json.Marshal(e.payload)
}

// MarshalJSON encodes the whole envelope.
func (e Event[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON[P]{
		ID:         e.id,
		Source:     e.source,
		OccurredAt: e.occurredAt,
		Payload:    e.payload,
	})
}

// UnmarshalJSON decodes an envelope written by MarshalJSON.
func (e *Event[P]) UnmarshalJSON(data []byte) error {
	var decoded eventJSON[P]
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*e = Event[P]{
		id:         decoded.ID,
		source:     decoded.Source,
		payload:    decoded.Payload,
		occurredAt: decoded.OccurredAt,
	}

	return nil
}
