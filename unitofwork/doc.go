// Package unitofwork coordinates one transaction across one or more persistence contexts.
//
// A TransactionStrategy owns the ambient Transaction of a unit of work. The transaction starts
// lazily on the first CreateContext call and is reused by every later call; each distinct
// connection string enlists its own branch. Commit commits all branches together, Dispose rolls
// back whatever was not committed.
//
// Most callers use a Factory, which carries the unit in a context.Context:
//
//	err := factory.Do(ctx, unitofwork.Options{IsolationLevel: unitofwork.IsolationSerializable},
//		func(ctx context.Context, unit *unitofwork.Unit) error {
//			orders, err := unitofwork.Context(ctx, unit, "orders", newOrderRepository)
//			if err != nil {
//				return err
//			}
//
//			return orders.Insert(ctx, order)
//		})
//
// Units begun with ScopeRequired inside another unit join it. They commit nothing themselves;
// disposing such a unit without committing dooms the shared transaction, and the owner's Commit
// then fails with ErrTransactionAborted.
//
// The persistence engine is pluggable through the Engine interface; package sqlengine implements
// it for pgx, database/sql and sqlx.
package unitofwork
