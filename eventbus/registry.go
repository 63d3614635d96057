package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type funcIdentity uintptr

// closureName matches the runtime names of function literals, e.g. "pkg.F.func1" or "pkg.F.func1.2".
var closureName = regexp.MustCompile(`\.func\d+(\.\d+)*$`)

// registration is one entry in the dispatch table.
// identity is nil for handlers that can only be removed through their token.
type registration struct {
	token     *Token
	eventType reflect.Type
	name      string
	identity  any
	call      func(ctx context.Context, event any, headers Headers) error
	active    atomic.Bool
}

// Register adds a handler for events of type E and returns the token that removes it again.
func Register[E any](b *Bus, handler Handler[E]) *Token {
	return b.add(
		reflect.TypeFor[E](),
		handlerName(handler),
		identityOf(handler),
		typedCall(handler),
	)
}

// RegisterFunc adds a function as a handler for events of type E.
// Registering the same function twice creates two independent registrations.
func RegisterFunc[E any](b *Bus, fn func(ctx context.Context, event E, headers Headers) error) *Token {
	return b.add(
		reflect.TypeFor[E](),
		handlerName(fn),
		identityOf(fn),
		typedCall[E](HandlerFunc[E](fn)),
	)
}

// RegisterFactory adds a handler for events of type E which is resolved by factory on every publish.
// A factory error or a nil handler fails that handler with ErrHandlerResolutionFailed.
func RegisterFactory[E any](b *Bus, factory func() (Handler[E], error)) *Token {
	eventType := reflect.TypeFor[E]()

	return b.add(
		eventType,
		"factory("+handlerName(factory)+")",
		identityOf(factory),
		func(ctx context.Context, event any, headers Headers) error {
			handler, err := factory()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrHandlerResolutionFailed, err)
			}

			if handler == nil {
				return fmt.Errorf("%w: factory for %s returned nil", ErrHandlerResolutionFailed, eventType)
			}

			return typedCall(handler)(ctx, event, headers)
		},
	)
}

// Unregister removes the earliest registration equal to handler for events of type E.
// It returns false if no such registration exists. Handlers that cannot be compared with ==,
// e.g. structs holding funcs, maps or slices, can only be removed through their token.
func Unregister[E any](b *Bus, handler Handler[E]) bool {
	return b.removeByIdentity(reflect.TypeFor[E](), identityOf(handler))
}

// UnregisterFunc removes the earliest registration of the top-level function fn for events of type E.
// Method values and function literals share their code with every other value of the same method or
// literal, so they are never matched here and UnregisterFunc returns false for them.
// Use the token returned by RegisterFunc to remove those.
func UnregisterFunc[E any](b *Bus, fn func(ctx context.Context, event E, headers Headers) error) bool {
	return b.removeByIdentity(reflect.TypeFor[E](), identityOf(fn))
}

// UnregisterAll removes all handlers for events of type E and returns how many were removed.
func UnregisterAll[E any](b *Bus) int {
	eventType := reflect.TypeFor[E]()

	b.mu.Lock()
	registrations := b.handlers[eventType]
	delete(b.handlers, eventType)
	for _, reg := range registrations {
		reg.active.Store(false)
	}
	b.mu.Unlock()

	if len(registrations) > 0 {
		b.logDebug(context.Background(), logMsgAllHandlersUnregistered,
			logAttrEventType, typeName(eventType),
			logAttrHandlerCount, len(registrations),
		)
	}

	return len(registrations)
}

// HandlerCount returns the number of active registrations for events of type E.
func HandlerCount[E any](b *Bus) int {
	return b.HandlerCountFor(reflect.TypeFor[E]())
}

func (b *Bus) add(
	eventType reflect.Type,
	name string,
	identity any,
	call func(ctx context.Context, event any, headers Headers) error,
) *Token {
	reg := &registration{
		eventType: eventType,
		name:      name,
		identity:  identity,
		call:      call,
	}
	reg.token = &Token{id: uuid.New(), bus: b, reg: reg}
	reg.active.Store(true)

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], reg)
	b.mu.Unlock()

	b.logDebug(context.Background(), logMsgHandlerRegistered,
		logAttrEventType, typeName(eventType),
		logAttrHandler, name,
		logAttrToken, reg.token.id.String(),
	)

	return reg.token
}

// remove deletes exactly this registration; it reports whether the call removed it.
func (b *Bus) remove(reg *registration) bool {
	b.mu.Lock()

	registrations := b.handlers[reg.eventType]
	index := -1
	for i, candidate := range registrations {
		if candidate == reg {
			index = i
			break
		}
	}

	if index < 0 {
		b.mu.Unlock()
		return false
	}

	b.deleteAt(reg.eventType, index)
	b.mu.Unlock()

	b.logDebug(context.Background(), logMsgHandlerUnregistered,
		logAttrEventType, typeName(reg.eventType),
		logAttrHandler, reg.name,
		logAttrToken, reg.token.id.String(),
	)

	return true
}

func (b *Bus) removeByIdentity(eventType reflect.Type, identity any) bool {
	if identity == nil {
		return false
	}

	b.mu.RLock()
	var found *registration
	for _, candidate := range b.handlers[eventType] {
		if candidate.identity == identity {
			found = candidate
			break
		}
	}
	b.mu.RUnlock()

	if found == nil {
		return false
	}

	return b.remove(found)
}

// deleteAt must be called with the write lock held.
func (b *Bus) deleteAt(eventType reflect.Type, index int) {
	registrations := b.handlers[eventType]
	registrations[index].active.Store(false)

	if len(registrations) == 1 {
		delete(b.handlers, eventType)
		return
	}

	remaining := make([]*registration, 0, len(registrations)-1)
	remaining = append(remaining, registrations[:index]...)
	remaining = append(remaining, registrations[index+1:]...)
	b.handlers[eventType] = remaining
}

func typedCall[E any](handler Handler[E]) func(ctx context.Context, event any, headers Headers) error {
	return func(ctx context.Context, event any, headers Headers) error {
		typed, ok := event.(E)
		if !ok {
			return fmt.Errorf("%T for %s: %w", event, reflect.TypeFor[E](), ErrEventTypeMismatch)
		}

		return handler.Handle(ctx, typed, headers)
	}
}

// identityOf returns a comparable identity for v, or nil if v can only be removed through its token.
func identityOf(v any) any {
	if v == nil {
		return nil
	}

	value := reflect.ValueOf(v)
	if value.Kind() == reflect.Func {
		if value.IsNil() {
			return nil
		}

		fn := runtime.FuncForPC(value.Pointer())
		if fn == nil || strings.HasSuffix(fn.Name(), "-fm") || closureName.MatchString(fn.Name()) {
			return nil
		}

		return funcIdentity(value.Pointer())
	}

	if !value.Type().Comparable() || !selfEqual(v) {
		return nil
	}

	return v
}

// selfEqual reports whether v == v holds without panicking.
// Comparable struct types still panic when an interface field holds a func, map or slice.
func selfEqual(v any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()

	return v == v //nolint:gocritic,staticcheck
}

func handlerName(v any) string {
	value := reflect.ValueOf(v)
	if value.Kind() == reflect.Func && !value.IsNil() {
		if fn := runtime.FuncForPC(value.Pointer()); fn != nil {
			return fn.Name()
		}
	}

	return fmt.Sprintf("%T", v)
}
