package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/uow-eventbus-go/eventbus"
	"github.com/AntonStoeckl/uow-eventbus-go/observability"
	. "github.com/AntonStoeckl/uow-eventbus-go/testutil/helper" //nolint:revive
)

type numberAdded struct {
	Value int
}

type named interface {
	Name() string
}

type userRenamed struct {
	NewName string
}

func (e userRenamed) Name() string {
	return e.NewName
}

type summingHandler struct {
	sum *int
}

func (h summingHandler) Handle(_ context.Context, event numberAdded, _ eventbus.Headers) error {
	*h.sum += event.Value
	return nil
}

type counter struct {
	calls atomic.Int64
}

func (c *counter) handle(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
	c.calls.Add(1)
	return nil
}

var globalCalls atomic.Int64

func countGlobally(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
	globalCalls.Add(1)
	return nil
}

func givenBus(t *testing.T, options ...eventbus.Option) *eventbus.Bus {
	bus, err := eventbus.NewBus(options...)
	require.NoError(t, err, "error in arranging test data")

	return bus
}

func publishNumbers(t *testing.T, bus *eventbus.Bus, numbers ...int) {
	for _, n := range numbers {
		require.NoError(t, bus.Publish(context.Background(), numberAdded{Value: n}, nil))
	}
}

func Test_Bus_Publish_Should_InvokeHandlerForEveryEvent(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0

	// arrange
	eventbus.Register[numberAdded](bus, summingHandler{sum: &sum})

	// act
	publishNumbers(t, bus, 1, 2, 3, 4)

	// assert
	assert.Equal(t, 10, sum)
}

func Test_Bus_Publish_Should_NotInvokeHandler_AfterTokenWasUnregistered(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0

	// arrange
	token := eventbus.Register[numberAdded](bus, summingHandler{sum: &sum})
	publishNumbers(t, bus, 1, 2, 3)

	// act
	removed := token.Unregister()
	publishNumbers(t, bus, 4)

	// assert
	assert.True(t, removed)
	assert.False(t, token.Active())
	assert.Equal(t, 6, sum)
	assert.Equal(t, 0, eventbus.HandlerCount[numberAdded](bus))
}

func Test_Bus_Unregister_Should_RemoveHandlerByValue(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0
	handler := summingHandler{sum: &sum}

	// arrange
	eventbus.Register[numberAdded](bus, handler)
	publishNumbers(t, bus, 1, 2, 3)

	// act
	removed := eventbus.Unregister[numberAdded](bus, handler)
	publishNumbers(t, bus, 4)

	// assert
	assert.True(t, removed)
	assert.Equal(t, 6, sum)
}

func Test_Bus_Unregister_Should_ReturnFalse_WhenHandlerIsUnknown(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0

	// act
	removed := eventbus.Unregister[numberAdded](bus, summingHandler{sum: &sum})

	// assert
	assert.False(t, removed)
}

func Test_Bus_RegisterFunc_Should_InvokeDuplicateRegistrationsIndependently(t *testing.T) {
	// setup
	bus := givenBus(t)
	globalCalls.Store(0)

	// arrange
	eventbus.RegisterFunc(bus, countGlobally)
	eventbus.RegisterFunc(bus, countGlobally)

	// act
	publishNumbers(t, bus, 1)

	// assert
	assert.Equal(t, int64(2), globalCalls.Load())
	assert.Equal(t, 2, eventbus.HandlerCount[numberAdded](bus))
}

func Test_Bus_UnregisterFunc_Should_RemoveOnlyOneOfTwoDuplicateRegistrations(t *testing.T) {
	// setup
	bus := givenBus(t)
	globalCalls.Store(0)

	// arrange
	first := eventbus.RegisterFunc(bus, countGlobally)
	second := eventbus.RegisterFunc(bus, countGlobally)

	// act
	removed := eventbus.UnregisterFunc(bus, countGlobally)
	publishNumbers(t, bus, 1)

	// assert
	assert.True(t, removed)
	assert.Equal(t, 1, eventbus.HandlerCount[numberAdded](bus))
	assert.Equal(t, int64(1), globalCalls.Load())
	assert.False(t, first.Active(), "the earliest registration should be removed")
	assert.True(t, second.Active())
}

func Test_Bus_RegisterFunc_Should_AcceptMethodValues(t *testing.T) {
	// setup
	bus := givenBus(t)
	c := &counter{}

	// arrange
	token := eventbus.RegisterFunc(bus, c.handle)

	// act
	publishNumbers(t, bus, 1, 2)

	// assert
	assert.Equal(t, int64(2), c.calls.Load())
	assert.Equal(t, reflect.TypeFor[numberAdded](), token.EventType())
	assert.NotEqual(t, token.ID().String(), "00000000-0000-0000-0000-000000000000")
}

func Test_Bus_UnregisterFunc_Should_NotRemoveAnotherReceiversMethodValue(t *testing.T) {
	// setup
	bus := givenBus(t)
	a := &counter{}
	b := &counter{}

	// arrange
	eventbus.RegisterFunc(bus, a.handle)
	tokenB := eventbus.RegisterFunc(bus, b.handle)

	// act
	removed := eventbus.UnregisterFunc(bus, b.handle)
	publishNumbers(t, bus, 1)

	// assert
	assert.False(t, removed, "method values can only be removed through their token")
	assert.Equal(t, int64(1), a.calls.Load())
	assert.Equal(t, int64(1), b.calls.Load())

	// act
	tokenB.Unregister()
	publishNumbers(t, bus, 2)

	// assert
	assert.Equal(t, int64(2), a.calls.Load())
	assert.Equal(t, int64(1), b.calls.Load())
}

func Test_Bus_UnregisterFunc_Should_NotMatchClosuresOfTheSameLiteral(t *testing.T) {
	// setup
	bus := givenBus(t)
	first, second := 0, 0
	adder := func(sum *int) func(context.Context, numberAdded, eventbus.Headers) error {
		return func(_ context.Context, event numberAdded, _ eventbus.Headers) error {
			*sum += event.Value
			return nil
		}
	}

	// arrange
	eventbus.RegisterFunc(bus, adder(&first))

	// act
	removed := eventbus.UnregisterFunc(bus, adder(&second))
	publishNumbers(t, bus, 5)

	// assert
	assert.False(t, removed)
	assert.Equal(t, 5, first)
	assert.Equal(t, 0, second)
}

type wrappingHandler struct {
	next any
}

func (h wrappingHandler) Handle(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
	h.next.(func())()
	return nil
}

type callbackHandler struct {
	onEvent func()
}

func (h callbackHandler) Handle(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
	h.onEvent()
	return nil
}

func Test_Bus_Unregister_Should_LeaveUncomparableHandlersToTheirToken(t *testing.T) {
	testCases := []struct {
		name    string
		handler func(calls *int) eventbus.Handler[numberAdded]
	}{
		{
			name: "interface field holding a func",
			handler: func(calls *int) eventbus.Handler[numberAdded] {
				return wrappingHandler{next: func() { *calls++ }}
			},
		},
		{
			name: "func field",
			handler: func(calls *int) eventbus.Handler[numberAdded] {
				return callbackHandler{onEvent: func() { *calls++ }}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			bus := givenBus(t)
			calls := 0
			handler := tc.handler(&calls)

			// arrange
			token := eventbus.Register[numberAdded](bus, handler)

			// act
			var removed bool
			require.NotPanics(t, func() { removed = eventbus.Unregister[numberAdded](bus, handler) })
			publishNumbers(t, bus, 1)

			// assert
			assert.False(t, removed)
			assert.Equal(t, 1, calls)

			// act
			assert.True(t, token.Unregister())
			publishNumbers(t, bus, 2)

			// assert
			assert.Equal(t, 1, calls)
			assert.Equal(t, 0, eventbus.HandlerCount[numberAdded](bus))
		})
	}
}

func Test_Token_Unregister_Should_BeIdempotent(t *testing.T) {
	// setup
	bus := givenBus(t)
	token := eventbus.RegisterFunc(bus, countGlobally)

	// act
	first := token.Unregister()
	second := token.Unregister()

	// assert
	assert.True(t, first)
	assert.False(t, second)

	var nilToken *eventbus.Token
	assert.False(t, nilToken.Unregister())
}

func Test_Token_Unregister_Should_WorkFromWithinTheHandler(t *testing.T) {
	// setup
	bus := givenBus(t)
	calls := 0

	// arrange
	var token *eventbus.Token
	token = eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		calls++
		token.Unregister()
		return nil
	})

	// act
	publishNumbers(t, bus, 1, 2, 3)

	// assert
	assert.Equal(t, 1, calls)
}

func Test_Bus_Publish_Should_SkipHandler_UnregisteredDuringAnInFlightPublish(t *testing.T) {
	// setup
	bus := givenBus(t)
	secondCalls := 0

	// arrange
	var secondToken *eventbus.Token
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		secondToken.Unregister()
		return nil
	})
	secondToken = eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		secondCalls++
		return nil
	})

	// act
	publishNumbers(t, bus, 1)

	// assert
	assert.Equal(t, 0, secondCalls)
}

func Test_Bus_Publish_Should_InvokeHandlersInRegistrationOrder(t *testing.T) {
	// setup
	bus := givenBus(t)
	var order []int

	// arrange
	for i := range 5 {
		eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
			order = append(order, i)
			return nil
		})
	}

	// act
	publishNumbers(t, bus, 1)

	// assert
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func Test_Bus_Publish_Should_PassHeadersUnmodified(t *testing.T) {
	// setup
	bus := givenBus(t)
	headers := eventbus.Headers{"correlation_id": "abc", "attempt": 3}
	var received eventbus.Headers

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, h eventbus.Headers) error {
		received = h
		return nil
	})

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, headers)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, headers, received)
}

func Test_Bus_Publish_Should_SucceedWithoutHandlers(t *testing.T) {
	// setup
	bus := givenBus(t)

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.NoError(t, err)
}

func Test_Bus_Publish_Should_FailForNilEvent(t *testing.T) {
	// setup
	bus := givenBus(t)

	// act
	err := bus.Publish(context.Background(), nil, nil)

	// assert
	assert.ErrorIs(t, err, eventbus.ErrNilEvent)
}

func Test_Bus_Publish_Should_RouteByExactRuntimeType(t *testing.T) {
	// setup
	bus := givenBus(t)
	interfaceCalls := 0
	concreteCalls := 0

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ named, _ eventbus.Headers) error {
		interfaceCalls++
		return nil
	})
	eventbus.RegisterFunc(bus, func(_ context.Context, _ userRenamed, _ eventbus.Headers) error {
		concreteCalls++
		return nil
	})

	// act
	err := bus.Publish(context.Background(), userRenamed{NewName: "jane"}, nil)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, interfaceCalls, "handlers of an interface type must not receive concrete events")
	assert.Equal(t, 1, concreteCalls)
}

func Test_Bus_PublishAs_Should_RouteToHandlersOfTheDeclaredType(t *testing.T) {
	// setup
	bus := givenBus(t)
	var received []string

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, event named, _ eventbus.Headers) error {
		received = append(received, event.Name())
		return nil
	})

	// act
	err := bus.PublishAs(context.Background(), reflect.TypeFor[named](), userRenamed{NewName: "jane"}, nil)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"jane"}, received)
}

func Test_Bus_PublishAs_Should_RouteIdenticallyToGenericPublish(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0
	eventbus.Register[numberAdded](bus, summingHandler{sum: &sum})

	// act
	errAs := bus.PublishAs(context.Background(), reflect.TypeFor[numberAdded](), numberAdded{Value: 5}, nil)
	sumAfterPublishAs := sum
	errGeneric := eventbus.Publish(context.Background(), bus, numberAdded{Value: 5}, nil)

	// assert
	assert.NoError(t, errAs)
	assert.NoError(t, errGeneric)
	assert.Equal(t, 5, sumAfterPublishAs)
	assert.Equal(t, 10, sum)
}

func Test_Bus_PublishAs_Should_Fail_WhenEventIsNotAssignable(t *testing.T) {
	// setup
	bus := givenBus(t)

	// act
	errMismatch := bus.PublishAs(context.Background(), reflect.TypeFor[named](), numberAdded{Value: 1}, nil)
	errNilType := bus.PublishAs(context.Background(), nil, numberAdded{Value: 1}, nil)
	errNilEvent := bus.PublishAs(context.Background(), reflect.TypeFor[named](), nil, nil)

	// assert
	assert.ErrorIs(t, errMismatch, eventbus.ErrEventTypeMismatch)
	assert.ErrorIs(t, errNilType, eventbus.ErrNilEventType)
	assert.ErrorIs(t, errNilEvent, eventbus.ErrNilEvent)
}

func Test_Publish_Should_RouteByStaticType(t *testing.T) {
	// setup
	bus := givenBus(t)
	interfaceCalls := 0

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ named, _ eventbus.Headers) error {
		interfaceCalls++
		return nil
	})

	// act
	err := eventbus.Publish[named](context.Background(), bus, userRenamed{NewName: "jane"}, nil)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, interfaceCalls)
}

func Test_Bus_Publish_Should_IsolateAndAggregateHandlerFailures(t *testing.T) {
	// setup
	bus := givenBus(t)
	errFirst := errors.New("first failed")
	errThird := errors.New("third failed")
	secondCalled := false
	fourthCalled := false

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		return errFirst
	})
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		secondCalled = true
		return nil
	})
	thirdToken := eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		return errThird
	})
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		fourthCalled = true
		return nil
	})

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, eventbus.ErrPublishFailed)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errThird)
	assert.True(t, secondCalled)
	assert.True(t, fourthCalled)

	handlerErrors := eventbus.HandlerErrors(err)
	require.Len(t, handlerErrors, 2)
	assert.Equal(t, thirdToken.ID(), handlerErrors[1].TokenID)
	assert.Equal(t, reflect.TypeFor[numberAdded](), handlerErrors[0].EventType)
}

func Test_Bus_Publish_Should_RecoverHandlerPanics(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		panic("boom")
	})
	eventbus.Register[numberAdded](bus, summingHandler{sum: &sum})

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 7}, nil)

	// assert
	assert.ErrorIs(t, err, eventbus.ErrHandlerPanicked)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 7, sum, "handlers after the panicking one should still run")
}

func Test_Bus_RegisterFactory_Should_ResolveAFreshHandlerOnEveryPublish(t *testing.T) {
	// setup
	bus := givenBus(t)
	resolved := 0
	sum := 0

	// arrange
	eventbus.RegisterFactory(bus, func() (eventbus.Handler[numberAdded], error) {
		resolved++
		return summingHandler{sum: &sum}, nil
	})

	// act
	publishNumbers(t, bus, 1, 2, 3)

	// assert
	assert.Equal(t, 3, resolved)
	assert.Equal(t, 6, sum)
}

func Test_Bus_RegisterFactory_Should_FailHandler_WhenResolutionFails(t *testing.T) {
	// setup
	bus := givenBus(t)
	errNoHandler := errors.New("no handler available")

	// arrange
	eventbus.RegisterFactory(bus, func() (eventbus.Handler[numberAdded], error) {
		return nil, errNoHandler
	})
	eventbus.RegisterFactory(bus, func() (eventbus.Handler[numberAdded], error) {
		return nil, nil
	})

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.ErrorIs(t, err, eventbus.ErrHandlerResolutionFailed)
	assert.ErrorIs(t, err, errNoHandler)
	assert.Len(t, eventbus.HandlerErrors(err), 2)
}

func Test_Bus_UnregisterAll_Should_RemoveAllHandlersOfOneType(t *testing.T) {
	// setup
	bus := givenBus(t)
	sum := 0
	renamed := 0

	// arrange
	eventbus.Register[numberAdded](bus, summingHandler{sum: &sum})
	token := eventbus.RegisterFunc(bus, countGlobally)
	eventbus.RegisterFunc(bus, func(_ context.Context, _ userRenamed, _ eventbus.Headers) error {
		renamed++
		return nil
	})

	// act
	removed := eventbus.UnregisterAll[numberAdded](bus)
	publishNumbers(t, bus, 1)
	err := bus.Publish(context.Background(), userRenamed{NewName: "jane"}, nil)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, sum)
	assert.Equal(t, 1, renamed)
	assert.False(t, token.Active())
	assert.False(t, token.Unregister())
	assert.Equal(t, []reflect.Type{reflect.TypeFor[userRenamed]()}, bus.EventTypes())
}

func Test_Bus_PublishConcurrently_Should_WaitForAllHandlers(t *testing.T) {
	// setup
	bus := givenBus(t, eventbus.WithMaxConcurrency(2))
	var completed atomic.Int64
	errSlow := errors.New("slow handler failed")

	// arrange
	for range 5 {
		eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		})
	}
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		time.Sleep(20 * time.Millisecond)
		completed.Add(1)
		return errSlow
	})

	// act
	err := bus.PublishConcurrently(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.ErrorIs(t, err, errSlow)
	assert.Equal(t, int64(6), completed.Load())
}

func Test_NewBus_Should_Fail_ForNegativeMaxConcurrency(t *testing.T) {
	// act
	bus, err := eventbus.NewBus(eventbus.WithMaxConcurrency(-1))

	// assert
	assert.Nil(t, bus)
	assert.ErrorIs(t, err, eventbus.ErrInvalidMaxConcurrency)
}

func Test_Default_Should_ReturnTheSameBus(t *testing.T) {
	// act
	first := eventbus.Default()
	second := eventbus.Default()

	// assert
	assert.Same(t, first, second)
}

func Test_SetDefault_Should_ReplaceTheProcessWideBus(t *testing.T) {
	// setup
	previous := eventbus.Default()
	t.Cleanup(func() { _ = eventbus.SetDefault(previous) })

	spy := NewLogHandlerSpy(false)
	observed := givenBus(t, eventbus.WithLogger(slog.New(spy)))

	// act
	err := eventbus.SetDefault(observed)
	eventbus.RegisterFunc(eventbus.Default(), countGlobally)

	// assert
	require.NoError(t, err)
	assert.Same(t, observed, eventbus.Default())
	assert.True(t, spy.HasRecord(slog.LevelDebug, "eventbus: handler registered"))
	assert.Equal(t, 0, eventbus.HandlerCount[numberAdded](previous))
}

func Test_SetDefault_Should_RejectANilBus(t *testing.T) {
	// setup
	previous := eventbus.Default()

	// act
	err := eventbus.SetDefault(nil)

	// assert
	assert.ErrorIs(t, err, eventbus.ErrNilBus)
	assert.Same(t, previous, eventbus.Default())
}

func Test_Bus_Should_AllowConcurrentRegisterUnregisterAndPublish(t *testing.T) {
	// setup
	bus := givenBus(t)
	var wg sync.WaitGroup

	// act
	for range 20 {
		wg.Add(2)

		go func() {
			defer wg.Done()
			token := eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
				return nil
			})
			token.Unregister()
		}()

		go func() {
			defer wg.Done()
			assert.NoError(t, bus.Publish(context.Background(), numberAdded{Value: 1}, nil))
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, 0, eventbus.HandlerCount[numberAdded](bus))
	assert.Empty(t, bus.EventTypes())
}

func Test_Bus_WithLogger_Should_LogRegistrationAndFailures(t *testing.T) {
	// setup
	logHandler := NewLogHandlerSpy(false)
	contextualLogger := NewContextualLoggerSpy()
	bus := givenBus(t,
		eventbus.WithLogger(slog.New(logHandler)),
		eventbus.WithContextualLogger(contextualLogger),
	)

	// arrange
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		return errors.New("broken")
	})

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.Error(t, err)
	assert.True(t, logHandler.HasRecord(slog.LevelDebug, "eventbus: handler registered"))
	assert.True(t, logHandler.HasRecordWithAttr("eventbus: event handler failed", "event_type", "eventbus_test.numberAdded"))
	assert.True(t, contextualLogger.HasMessage("error", "eventbus: event handler failed"))
}

func Test_Bus_WithMetrics_Should_RecordPublishMetrics(t *testing.T) {
	// setup
	metrics := NewMetricsCollectorSpy()
	bus := givenBus(t, eventbus.WithMetrics(metrics))

	// arrange
	eventbus.RegisterFunc(bus, countGlobally)
	eventbus.RegisterFunc(bus, func(_ context.Context, _ numberAdded, _ eventbus.Headers) error {
		return errors.New("broken")
	})

	// act
	_ = bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.True(t, metrics.HasDurationRecordForMetric("eventbus_publish_duration_seconds").
		WithLabel("event_type", "eventbus_test.numberAdded").
		WithStatus(observability.StatusError).
		Assert())
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric("eventbus_publish_total"))
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric("eventbus_handler_failures_total"))
	assert.Greater(t, metrics.ContextualCallCount(), 0)
}

func Test_Bus_WithTracing_Should_RecordAPublishSpan(t *testing.T) {
	// setup
	tracing := NewTracingCollectorSpy()
	bus := givenBus(t, eventbus.WithTracing(tracing))
	eventbus.RegisterFunc(bus, countGlobally)

	// act
	err := bus.Publish(context.Background(), numberAdded{Value: 1}, nil)

	// assert
	assert.NoError(t, err)
	span, found := tracing.FindSpan("eventbus.publish")
	require.True(t, found)
	assert.True(t, span.Finished)
	assert.Equal(t, observability.StatusSuccess, span.Status)
	assert.Equal(t, "eventbus_test.numberAdded", span.StartAttributes["event_type"])
	assert.Equal(t, "1", span.EndAttributes["handler_count"])
}
