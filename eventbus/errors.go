package eventbus

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var (
	// ErrPublishFailed is joined with every HandlerError returned from a publish call.
	ErrPublishFailed = errors.New("publishing the event failed")

	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("event must not be nil")

	// ErrNilEventType is returned when PublishAs is called without a declared type.
	ErrNilEventType = errors.New("declared event type must not be nil")

	// ErrEventTypeMismatch is returned when an event is not assignable to the type it is published as.
	ErrEventTypeMismatch = errors.New("event is not assignable to the declared event type")

	// ErrHandlerPanicked is wrapped into a HandlerError when a handler panics.
	ErrHandlerPanicked = errors.New("event handler panicked")

	// ErrHandlerResolutionFailed is wrapped into a HandlerError when a handler factory fails.
	ErrHandlerResolutionFailed = errors.New("resolving the event handler failed")

	// ErrNilBus is returned when SetDefault is called with a nil bus.
	ErrNilBus = errors.New("bus must not be nil")

	// ErrInvalidMaxConcurrency is returned when a negative concurrency limit is configured.
	ErrInvalidMaxConcurrency = errors.New("max concurrency must not be negative")
)

// HandlerError describes the failure of a single handler during a publish call.
type HandlerError struct {
	EventType reflect.Type
	Handler   string
	TokenID   uuid.UUID
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s failed: %v", e.Handler, typeName(e.EventType), e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// HandlerErrors extracts all HandlerError values from an error returned by a publish call.
func HandlerErrors(err error) []*HandlerError {
	if err == nil {
		return nil
	}

	var result []*HandlerError

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			result = append(result, HandlerErrors(inner)...)
		}

		return result
	}

	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		result = append(result, handlerErr)
	}

	return result
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}
