package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Factory starts units of work on one engine.
type Factory struct {
	engine   Engine
	options  []Option
	settings settings
}

// NewFactory creates a Factory. The options are handed to every strategy the factory creates.
func NewFactory(engine Engine, options ...Option) (*Factory, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}

	return &Factory{engine: engine, options: options, settings: s}, nil
}

// Unit is a scoped unit of work. The owner of a transaction commits and disposes it; a unit that
// joined an ambient unit only votes: disposing it without a commit dooms the shared transaction.
type Unit struct {
	id       uuid.UUID
	strategy *TransactionStrategy
	options  Options
	owner    bool
	root     *Unit

	mu        sync.Mutex
	committed bool
	disposed  bool
	hooks     []func(ctx context.Context) error
}

// Begin starts a unit of work and returns a context carrying it.
//
// With ScopeRequired the unit joins an ambient unit found in ctx, unless that one is suppressed or
// already finished. ScopeRequiresNew and ScopeSuppress always start a new strategy.
func (f *Factory) Begin(ctx context.Context, options Options) (context.Context, *Unit, error) {
	if err := options.Validate(); err != nil {
		return ctx, nil, err
	}

	resolved := options.WithDefaults(f.settings.defaults)

	if resolved.Scope == ScopeRequired {
		if ambient := FromContext(ctx); ambient.joinable() {
			unit, err := ambient.join(options, resolved)
			if err != nil {
				return ctx, nil, err
			}

			return NewContext(ctx, unit), unit, nil
		}
	}

	strategy, err := NewTransactionStrategy(f.engine, f.options...)
	if err != nil {
		return ctx, nil, err
	}

	if err := strategy.InitOptions(resolved); err != nil {
		return ctx, nil, err
	}

	unit := &Unit{
		id:       uuid.New(),
		strategy: strategy,
		options:  resolved,
		owner:    true,
	}
	unit.root = unit

	return NewContext(ctx, unit), unit, nil
}

// Do runs fn inside a unit of work. The unit commits if fn returns nil and is disposed in any case,
// including when fn panics.
func (f *Factory) Do(ctx context.Context, options Options, fn func(ctx context.Context, unit *Unit) error) (err error) {
	unitCtx, unit, err := f.Begin(ctx, options)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = unit.Dispose(unitCtx)
			panic(r)
		}

		err = errors.Join(err, unit.Dispose(unitCtx))
	}()

	if err := fn(unitCtx, unit); err != nil {
		return err
	}

	return unit.Commit(unitCtx)
}

func (u *Unit) joinable() bool {
	if u == nil || u.options.Scope == ScopeSuppress {
		return false
	}

	u.mu.Lock()
	finished := u.committed || u.disposed
	u.mu.Unlock()

	if finished {
		return false
	}

	state := u.strategy.State()

	return !u.strategy.Disposed() && state != StateCommitted && state != StateRolledBack
}

func (u *Unit) join(requested, resolved Options) (*Unit, error) {
	if requested.IsolationLevel != IsolationUnspecified && requested.IsolationLevel != u.options.IsolationLevel {
		return nil, fmt.Errorf(
			"%w: requested %s, ambient %s",
			ErrIsolationLevelMismatch, requested.IsolationLevel, u.options.IsolationLevel,
		)
	}

	options := u.options
	options.AsyncFlow = resolved.AsyncFlow

	return &Unit{
		id:       uuid.New(),
		strategy: u.strategy,
		options:  options,
		owner:    false,
		root:     u.root,
	}, nil
}

// ID returns the unique id of the unit.
func (u *Unit) ID() uuid.UUID {
	return u.id
}

// Options returns the resolved options of the unit.
func (u *Unit) Options() Options {
	return u.options
}

// IsOwner reports whether the unit owns the transaction, as opposed to having joined an ambient unit.
func (u *Unit) IsOwner() bool {
	return u.owner
}

// Strategy returns the transaction strategy shared by the unit and all units that joined it.
func (u *Unit) Strategy() *TransactionStrategy {
	return u.strategy
}

// OnCommitted registers fn to run after the owning unit committed successfully.
// Hooks run in registration order with the unit's context; they never run on rollback.
func (u *Unit) OnCommitted(fn func(ctx context.Context) error) {
	root := u.root

	root.mu.Lock()
	defer root.mu.Unlock()

	root.hooks = append(root.hooks, fn)
}

// Commit commits the transaction if the unit owns it, then runs the after-commit hooks.
// A joined unit only records its vote. Hook failures are joined with ErrAfterCommitHookFailed;
// the transaction stays committed.
func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.disposed {
		u.mu.Unlock()
		return ErrDisposed
	}
	u.mu.Unlock()

	if !u.owner {
		u.mu.Lock()
		u.committed = true
		u.mu.Unlock()

		return nil
	}

	if err := u.strategy.Commit(ctx); err != nil {
		return err
	}

	u.mu.Lock()
	u.committed = true
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	return u.runHooks(ctx, hooks)
}

func (u *Unit) runHooks(ctx context.Context, hooks []func(ctx context.Context) error) error {
	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			u.strategy.settings.logError(ctx, logMsgAfterCommitFailed, err)
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(append([]error{ErrAfterCommitHookFailed}, errs...)...)
}

// Dispose ends the unit. The owner rolls back an uncommitted transaction; a joined unit that did
// not commit dooms the shared transaction. Calling it again does nothing.
func (u *Unit) Dispose(ctx context.Context) error {
	u.mu.Lock()
	if u.disposed {
		u.mu.Unlock()
		return nil
	}
	u.disposed = true
	committed := u.committed
	u.hooks = nil
	u.mu.Unlock()

	if !u.owner {
		if !committed {
			u.strategy.markRollbackOnly()
		}

		return nil
	}

	return u.strategy.Dispose(ctx)
}

// Context returns a persistence context for connectionString, enlisted in the unit's transaction.
func Context[T any](ctx context.Context, unit *Unit, connectionString string, resolver Resolver[T]) (T, error) {
	if unit == nil {
		var zero T
		return zero, ErrNoUnitOfWork
	}

	return CreateContext(ctx, unit.strategy, connectionString, resolver)
}

// ContextFrom returns a persistence context from the unit of work carried by ctx.
func ContextFrom[T any](ctx context.Context, connectionString string, resolver Resolver[T]) (T, error) {
	return Context(ctx, FromContext(ctx), connectionString, resolver)
}
