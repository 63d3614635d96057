package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

// Headers is an open mapping passed through unmodified to every handler of a publish call.
type Headers map[string]any

// Handler handles events of type E.
// Implementations must be safe for concurrent use if events are published from multiple goroutines.
type Handler[E any] interface {
	Handle(ctx context.Context, event E, headers Headers) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[E any] func(ctx context.Context, event E, headers Headers) error

// Handle calls f(ctx, event, headers).
func (f HandlerFunc[E]) Handle(ctx context.Context, event E, headers Headers) error {
	return f(ctx, event, headers)
}

// Bus is a concurrency-safe in-process event dispatcher.
// The zero value is not usable, construct it with NewBus or use Default.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]*registration

	maxConcurrency   int
	logger           observability.Logger
	contextualLogger observability.ContextualLogger
	metricsCollector observability.MetricsCollector
	tracingCollector observability.TracingCollector
}

// Option defines a functional option for configuring a Bus.
type Option func(*Bus) error

// WithLogger sets the logger for the Bus.
//
// Debug level: registrations, unregistrations, dispatch timing
// Error level: handler failures.
func WithLogger(logger observability.Logger) Option {
	return func(b *Bus) error {
		b.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger which receives the same messages as the Logger
// with the publish context, enabling trace correlation.
func WithContextualLogger(logger observability.ContextualLogger) Option {
	return func(b *Bus) error {
		b.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Bus.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(b *Bus) error {
		b.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Bus.
func WithTracing(collector observability.TracingCollector) Option {
	return func(b *Bus) error {
		b.tracingCollector = collector
		return nil
	}
}

// WithMaxConcurrency limits the number of handlers PublishConcurrently runs at the same time.
// Zero means unlimited.
func WithMaxConcurrency(limit int) Option {
	return func(b *Bus) error {
		if limit < 0 {
			return ErrInvalidMaxConcurrency
		}

		b.maxConcurrency = limit

		return nil
	}
}

// NewBus creates a new, empty Bus.
func NewBus(options ...Option) (*Bus, error) {
	b := &Bus{
		handlers: make(map[reflect.Type][]*registration),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

var defaultBus atomic.Pointer[Bus]

func init() {
	defaultBus.Store(&Bus{handlers: make(map[reflect.Type][]*registration)})
}

// Default returns the process-wide Bus.
// It logs, measures and traces nothing until it is replaced with SetDefault.
func Default() *Bus {
	return defaultBus.Load()
}

// SetDefault replaces the process-wide Bus, typically with one built by NewBus with observability options.
// Handlers registered on the previous default bus stay there.
func SetDefault(b *Bus) error {
	if b == nil {
		return ErrNilBus
	}

	defaultBus.Store(b)

	return nil
}

// Publish dispatches the event to all handlers registered for its exact runtime type.
func (b *Bus) Publish(ctx context.Context, event any, headers Headers) error {
	if event == nil {
		return ErrNilEvent
	}

	return b.dispatch(ctx, reflect.TypeOf(event), event, headers, false)
}

// PublishAs dispatches the event to all handlers registered for eventType.
// The event must be assignable to eventType, which allows publishing a concrete event to handlers
// of an interface type from non-generic call sites.
func (b *Bus) PublishAs(ctx context.Context, eventType reflect.Type, event any, headers Headers) error {
	if eventType == nil {
		return ErrNilEventType
	}

	if event == nil {
		return ErrNilEvent
	}

	if !reflect.TypeOf(event).AssignableTo(eventType) {
		return fmt.Errorf("publish %s as %s: %w", reflect.TypeOf(event), eventType, ErrEventTypeMismatch)
	}

	return b.dispatch(ctx, eventType, event, headers, false)
}

// PublishConcurrently dispatches the event to all handlers of its exact runtime type,
// running the handlers in separate goroutines. It returns after all handlers completed.
func (b *Bus) PublishConcurrently(ctx context.Context, event any, headers Headers) error {
	if event == nil {
		return ErrNilEvent
	}

	return b.dispatch(ctx, reflect.TypeOf(event), event, headers, true)
}

// Publish dispatches the event to all handlers registered for the static type E.
// For a concrete E this routes identically to Bus.Publish and Bus.PublishAs.
func Publish[E any](ctx context.Context, b *Bus, event E, headers Headers) error {
	if any(event) == nil {
		return ErrNilEvent
	}

	return b.dispatch(ctx, reflect.TypeFor[E](), event, headers, false)
}

// EventTypes returns all event types which currently have at least one handler, sorted by name.
func (b *Bus) EventTypes() []reflect.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]reflect.Type, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}

	slices.SortFunc(types, func(a, c reflect.Type) int {
		return strings.Compare(a.String(), c.String())
	})

	return types
}

// HandlerCountFor returns the number of active registrations for eventType.
func (b *Bus) HandlerCountFor(eventType reflect.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[eventType])
}

// snapshot copies the registrations of eventType so that dispatch runs without holding the lock.
func (b *Bus) snapshot(eventType reflect.Type) []*registration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.handlers[eventType])
}

func (b *Bus) dispatch(
	ctx context.Context,
	eventType reflect.Type,
	event any,
	headers Headers,
	concurrently bool,
) error {
	start := time.Now()
	ctx, span := b.startPublishSpan(ctx, eventType)

	registrations := b.snapshot(eventType)

	var errs []error
	if concurrently {
		errs = b.invokeConcurrently(ctx, registrations, event, headers)
	} else {
		for _, reg := range registrations {
			if err := b.invoke(ctx, reg, event, headers); err != nil {
				errs = append(errs, err)
			}
		}
	}

	duration := time.Since(start)

	if len(errs) > 0 {
		for _, err := range errs {
			b.logError(ctx, logMsgHandlerFailed, err, logAttrEventType, typeName(eventType))
		}

		b.recordPublishMetrics(ctx, eventType, len(registrations), len(errs), duration)
		b.finishPublishSpan(span, observability.StatusError, len(registrations), len(errs))

		return errors.Join(append([]error{ErrPublishFailed}, errs...)...)
	}

	b.logDebug(ctx, logMsgEventDispatched,
		logAttrEventType, typeName(eventType),
		logAttrHandlerCount, len(registrations),
		logAttrDurationMS, toMilliseconds(duration),
	)
	b.recordPublishMetrics(ctx, eventType, len(registrations), 0, duration)
	b.finishPublishSpan(span, observability.StatusSuccess, len(registrations), 0)

	return nil
}

func (b *Bus) invokeConcurrently(
	ctx context.Context,
	registrations []*registration,
	event any,
	headers Headers,
) []error {
	results := make([]error, len(registrations))

	var group errgroup.Group
	if b.maxConcurrency > 0 {
		group.SetLimit(b.maxConcurrency)
	}

	for i, reg := range registrations {
		group.Go(func() error {
			results[i] = b.invoke(ctx, reg, event, headers)
			return nil
		})
	}

	_ = group.Wait() // the goroutines never return errors, failures are collected in results

	errs := make([]error, 0)
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// invoke runs one registration, isolating errors and panics into a HandlerError.
func (b *Bus) invoke(ctx context.Context, reg *registration, event any, headers Headers) (err error) {
	if !reg.active.Load() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				EventType: reg.eventType,
				Handler:   reg.name,
				TokenID:   reg.token.id,
				Err:       fmt.Errorf("%w: %v", ErrHandlerPanicked, r),
			}
		}
	}()

	if callErr := reg.call(ctx, event, headers); callErr != nil {
		return &HandlerError{
			EventType: reg.eventType,
			Handler:   reg.name,
			TokenID:   reg.token.id,
			Err:       callErr,
		}
	}

	return nil
}
