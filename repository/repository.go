// Package repository defines the generic repository contract and opt-in capability interfaces.
//
// Implementations live in sub-packages; sqlrepo implements the contract on top of a unit of
// work's persistence context.
package repository

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

var (
	// ErrQueryFailed is joined with the engine error when reading entities failed.
	ErrQueryFailed = errors.New("querying entities failed")

	// ErrInsertFailed is joined with the engine error when inserting an entity failed.
	ErrInsertFailed = errors.New("inserting the entity failed")

	// ErrUpdateFailed is joined with the engine error when updating an entity failed.
	ErrUpdateFailed = errors.New("updating the entity failed")

	// ErrDeleteFailed is joined with the engine error when deleting entities failed.
	ErrDeleteFailed = errors.New("deleting entities failed")

	// ErrUnknownAssociation is returned when an association without a loader is loaded.
	ErrUnknownAssociation = errors.New("unknown association")
)

// Predicate filters entities. Any goqu expression works, for example goqu.Ex{"status": "open"}.
// A nil predicate matches all entities.
type Predicate = exp.Expression

// Entity is implemented by everything a Repository stores.
type Entity[ID comparable] interface {
	EntityID() ID
}

// Repository is the CRUD contract for entities of type T identified by ID.
//
// A missing entity is not an error: Get and FindOne report it with found == false,
// and deleting a missing id does nothing.
type Repository[T Entity[ID], ID comparable] interface {
	Get(ctx context.Context, id ID) (entity T, found bool, err error)
	GetAll(ctx context.Context) ([]T, error)
	Find(ctx context.Context, predicate Predicate) ([]T, error)
	FindOne(ctx context.Context, predicate Predicate) (entity T, found bool, err error)
	Count(ctx context.Context, predicate Predicate) (int64, error)
	Insert(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
	DeleteWhere(ctx context.Context, predicate Predicate) (int64, error)
}

// ExplicitLoader loads associations of an entity on demand instead of with the entity itself.
type ExplicitLoader[T any] interface {
	Load(ctx context.Context, entity *T, association string) error
}

// ConnectionAccessor exposes the connection a repository runs on, for statements the
// repository contract does not cover. Statements run inside the same transaction.
type ConnectionAccessor interface {
	Connection() unitofwork.DBTX
}
