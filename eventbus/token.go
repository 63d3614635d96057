package eventbus

import (
	"reflect"

	"github.com/google/uuid"
)

// Token is the handle of a single registration. Unregister releases it.
type Token struct {
	id  uuid.UUID
	bus *Bus
	reg *registration
}

// ID returns the unique id of the registration.
func (t *Token) ID() uuid.UUID {
	return t.id
}

// EventType returns the event type the registration routes.
func (t *Token) EventType() reflect.Type {
	return t.reg.eventType
}

// Active reports whether the registration still receives events.
func (t *Token) Active() bool {
	return t.reg.active.Load()
}

// Unregister removes the registration. It is safe to call more than once and from within the
// handler itself; it reports whether this call performed the removal.
func (t *Token) Unregister() bool {
	if t == nil {
		return false
	}

	return t.bus.remove(t.reg)
}
