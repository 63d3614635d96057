// Package eventbus provides an in-process publish/subscribe dispatcher with typed handlers,
// disposal-based unregistration and exact-type routing.
//
// Handlers are registered per Go type. Every registration returns a *Token; releasing the
// token removes exactly that registration. Publishing routes an event to the handlers of
// its exact type (the runtime type for Bus.Publish, the static type for the generic Publish,
// or an explicitly declared type for Bus.PublishAs). Handlers registered for an interface
// type do not receive concrete events published by runtime type.
//
// Handlers run in registration order on the publishing goroutine, or concurrently with
// Bus.PublishConcurrently. Publishing always waits for all handlers. A failing or panicking
// handler does not stop delivery to the others; all failures are joined with ErrPublishFailed
// and returned once every handler ran.
//
// Usage:
//
//	bus := eventbus.Default()
//
//	token := eventbus.RegisterFunc(bus, func(ctx context.Context, e OrderPlaced, h eventbus.Headers) error {
//		return notify(ctx, e.OrderID)
//	})
//	defer token.Unregister()
//
//	err := bus.Publish(ctx, OrderPlaced{OrderID: id}, eventbus.Headers{"correlation_id": cid})
package eventbus
