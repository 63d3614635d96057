package domain

import (
	"github.com/google/uuid"
)

// EntityBase carries the identity of an entity. Embed it into entity structs; its ID maps to the
// "id" column and is never part of an update.
type EntityBase[ID comparable] struct {
	ID ID `db:"id" goqu:"skipupdate"`
}

// EntityID returns the identity.
func (e EntityBase[ID]) EntityID() ID {
	return e.ID
}

// IsTransient reports whether no identity has been assigned yet.
func (e EntityBase[ID]) IsTransient() bool {
	var zero ID
	return e.ID == zero
}

// NewID returns a new time-ordered identity.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
