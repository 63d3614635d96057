// Package sqlrepo implements the repository contract on a SQL connection with goqu.
//
// A Repository works on any unitofwork.DBTX. Resolved through a unit of work it runs inside the
// unit's transaction:
//
//	orders, err := unitofwork.ContextFrom(ctx, "orders-db", sqlrepo.Resolver[Order, string]("orders"))
//
// Connections that report their dialect (the sqlengine connections do) get statements in that
// dialect; everything else gets postgres statements unless WithDialect says otherwise.
package sqlrepo
