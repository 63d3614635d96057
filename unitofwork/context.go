package unitofwork

import "context"

type unitKey struct{}

// NewContext returns a copy of ctx that carries unit.
func NewContext(ctx context.Context, unit *Unit) context.Context {
	return context.WithValue(ctx, unitKey{}, unit)
}

// FromContext returns the unit of work carried by ctx, or nil.
func FromContext(ctx context.Context) *Unit {
	unit, _ := ctx.Value(unitKey{}).(*Unit)
	return unit
}

// ForAsync returns the context to hand to a goroutine started inside a unit of work.
// If the unit suppresses async flow, the unit is removed from the returned context.
func ForAsync(ctx context.Context) context.Context {
	unit := FromContext(ctx)
	if unit == nil || unit.options.AsyncFlow != AsyncFlowSuppressed {
		return ctx
	}

	return context.WithValue(ctx, unitKey{}, (*Unit)(nil))
}
