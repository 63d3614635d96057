package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // registers the sqlite3 dialect
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
	"github.com/AntonStoeckl/uow-eventbus-go/repository"
	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

const (
	defaultIDColumn = "id"
	defaultDialect  = "postgres"

	logMsgSQLBuilt = "sqlrepo: built sql"
	logAttrTable   = "table"
	logAttrQuery   = "query"
)

var (
	// ErrNilDB is returned when a repository is created without a connection.
	ErrNilDB = errors.New("repository connection must not be nil")

	// ErrEmptyTableName is returned when a repository is created without a table name.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrEmptyIDColumn is returned when WithIDColumn is called with an empty name.
	ErrEmptyIDColumn = errors.New("id column must not be empty")

	// ErrBuildingQueryFailed is joined with goqu's error when a statement could not be built.
	ErrBuildingQueryFailed = errors.New("building the query failed")
)

// Loader loads one association of entity, running its statements on db.
type Loader[T any] func(ctx context.Context, db unitofwork.DBTX, entity *T) error

type settings struct {
	idColumn string
	dialect  string
	logger   observability.Logger
}

// Option defines a functional option for configuring a Repository.
type Option func(*settings) error

// WithIDColumn sets the primary key column. Defaults to "id".
func WithIDColumn(column string) Option {
	return func(s *settings) error {
		if column == "" {
			return ErrEmptyIDColumn
		}

		s.idColumn = column

		return nil
	}
}

// WithDialect sets the goqu dialect, "postgres" or "sqlite3". Without it the dialect is taken
// from the connection if it reports one, and defaults to postgres otherwise.
func WithDialect(dialect string) Option {
	return func(s *settings) error {
		s.dialect = dialect
		return nil
	}
}

// WithLogger sets a logger which receives every generated statement at debug level.
func WithLogger(logger observability.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// Repository implements repository.Repository on a SQL table.
//
// Columns map to struct fields through `db` tags, the same way sqlx maps them; fields of
// embedded structs are promoted. Mark the id field with `goqu:"skipupdate"`.
type Repository[T repository.Entity[ID], ID comparable] struct {
	db       unitofwork.DBTX
	table    string
	settings settings
	dialect  goqu.DialectWrapper
	mapper   *reflectx.Mapper

	mu      sync.RWMutex
	loaders map[string]Loader[T]
}

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// New creates a Repository for table on db.
func New[T repository.Entity[ID], ID comparable](
	db unitofwork.DBTX,
	table string,
	options ...Option,
) (*Repository[T, ID], error) {
	if db == nil {
		return nil, ErrNilDB
	}

	if table == "" {
		return nil, ErrEmptyTableName
	}

	s := settings{idColumn: defaultIDColumn}
	for _, option := range options {
		if err := option(&s); err != nil {
			return nil, err
		}
	}

	if s.dialect == "" {
		s.dialect = dialectOf(db)
	}

	return &Repository[T, ID]{
		db:       db,
		table:    table,
		settings: s,
		dialect:  goqu.Dialect(s.dialect),
		mapper:   mapper,
		loaders:  make(map[string]Loader[T]),
	}, nil
}

// Resolver returns a unitofwork.Resolver that builds a Repository on the enlisted connection.
func Resolver[T repository.Entity[ID], ID comparable](
	table string,
	options ...Option,
) unitofwork.Resolver[*Repository[T, ID]] {
	return func(_ context.Context, enlistment unitofwork.Enlistment) (*Repository[T, ID], error) {
		return New[T, ID](enlistment.DB, table, options...)
	}
}

func dialectOf(db unitofwork.DBTX) string {
	if d, ok := db.(interface{ Dialect() string }); ok && d.Dialect() != "" {
		return d.Dialect()
	}

	return defaultDialect
}

// WithAssociation registers the loader used by Load for association and returns the repository.
func (r *Repository[T, ID]) WithAssociation(association string, loader Loader[T]) *Repository[T, ID] {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaders[association] = loader

	return r
}

// Connection implements repository.ConnectionAccessor.
func (r *Repository[T, ID]) Connection() unitofwork.DBTX {
	return r.db
}

// Table returns the table name.
func (r *Repository[T, ID]) Table() string {
	return r.table
}

// Get returns the entity with the given id.
func (r *Repository[T, ID]) Get(ctx context.Context, id ID) (T, bool, error) {
	return r.FindOne(ctx, goqu.C(r.settings.idColumn).Eq(id))
}

// GetAll returns all entities of the table.
func (r *Repository[T, ID]) GetAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, nil)
}

// Find returns all entities matching predicate.
func (r *Repository[T, ID]) Find(ctx context.Context, predicate repository.Predicate) ([]T, error) {
	query, args, err := r.where(r.dialect.From(r.table).Prepared(true), predicate).
		Order(goqu.C(r.settings.idColumn).Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	return r.query(ctx, query, args)
}

// FindOne returns the first entity matching predicate.
func (r *Repository[T, ID]) FindOne(ctx context.Context, predicate repository.Predicate) (T, bool, error) {
	var zero T

	query, args, err := r.where(r.dialect.From(r.table).Prepared(true), predicate).
		Order(goqu.C(r.settings.idColumn).Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return zero, false, errors.Join(ErrBuildingQueryFailed, err)
	}

	entities, err := r.query(ctx, query, args)
	if err != nil {
		return zero, false, err
	}

	if len(entities) == 0 {
		return zero, false, nil
	}

	return entities[0], true, nil
}

// Count returns the number of entities matching predicate.
func (r *Repository[T, ID]) Count(ctx context.Context, predicate repository.Predicate) (int64, error) {
	query, args, err := r.where(
		r.dialect.From(r.table).Prepared(true).Select(goqu.COUNT(goqu.Star())),
		predicate,
	).ToSQL()
	if err != nil {
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	r.logSQL(query)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Join(repository.ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, errors.Join(repository.ErrQueryFailed, err)
		}
	}

	if err := rows.Err(); err != nil {
		return 0, errors.Join(repository.ErrQueryFailed, err)
	}

	return count, nil
}

// Insert inserts entity.
func (r *Repository[T, ID]) Insert(ctx context.Context, entity T) error {
	query, args, err := r.dialect.Insert(r.table).Prepared(true).Rows(entity).ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	r.logSQL(query)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Join(repository.ErrInsertFailed, err)
	}

	return nil
}

// Update writes all columns of entity to the row with the entity's id.
func (r *Repository[T, ID]) Update(ctx context.Context, entity T) error {
	query, args, err := r.dialect.Update(r.table).Prepared(true).
		Set(entity).
		Where(goqu.C(r.settings.idColumn).Eq(entity.EntityID())).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	r.logSQL(query)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Join(repository.ErrUpdateFailed, err)
	}

	return nil
}

// Delete deletes the entity with the given id. A missing id is not an error.
func (r *Repository[T, ID]) Delete(ctx context.Context, id ID) error {
	_, err := r.DeleteWhere(ctx, goqu.C(r.settings.idColumn).Eq(id))
	return err
}

// DeleteWhere deletes all entities matching predicate and returns how many were deleted.
func (r *Repository[T, ID]) DeleteWhere(ctx context.Context, predicate repository.Predicate) (int64, error) {
	dataset := r.dialect.Delete(r.table).Prepared(true)
	if predicate != nil {
		dataset = dataset.Where(predicate)
	}

	query, args, err := dataset.ToSQL()
	if err != nil {
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	r.logSQL(query)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Join(repository.ErrDeleteFailed, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(repository.ErrDeleteFailed, err)
	}

	return deleted, nil
}

// Load implements repository.ExplicitLoader with the loaders registered through WithAssociation.
func (r *Repository[T, ID]) Load(ctx context.Context, entity *T, association string) error {
	r.mu.RLock()
	loader, ok := r.loaders[association]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q on %s", repository.ErrUnknownAssociation, association, r.table)
	}

	if err := loader(ctx, r.db, entity); err != nil {
		return errors.Join(repository.ErrQueryFailed, err)
	}

	return nil
}

func (r *Repository[T, ID]) where(dataset *goqu.SelectDataset, predicate repository.Predicate) *goqu.SelectDataset {
	if predicate == nil {
		return dataset
	}

	return dataset.Where(predicate)
}

func (r *Repository[T, ID]) query(ctx context.Context, query string, args []any) ([]T, error) {
	r.logSQL(query)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(repository.ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	entities, err := ScanAll[T](rows, r.mapper)
	if err != nil {
		return nil, errors.Join(repository.ErrQueryFailed, err)
	}

	return entities, nil
}

func (r *Repository[T, ID]) logSQL(query string) {
	if r.settings.logger != nil {
		r.settings.logger.Debug(logMsgSQLBuilt, logAttrTable, r.table, logAttrQuery, query)
	}
}

// ScanAll scans every row into a T, matching columns to fields with mapper.
// Columns without a matching field are skipped.
func ScanAll[T any](rows unitofwork.Rows, mapper *reflectx.Mapper) ([]T, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	traversals := mapper.TraversalsByName(reflect.TypeFor[T](), columns)
	entities := make([]T, 0)

	for rows.Next() {
		var entity T
		value := reflect.ValueOf(&entity).Elem()

		targets := make([]any, len(columns))
		for i, traversal := range traversals {
			if len(traversal) == 0 {
				targets[i] = new(any)
				continue
			}

			targets[i] = reflectx.FieldByIndexes(value, traversal).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entities, nil
}

var (
	_ repository.Repository[entityProbe, int] = (*Repository[entityProbe, int])(nil)
	_ repository.ExplicitLoader[entityProbe]  = (*Repository[entityProbe, int])(nil)
	_ repository.ConnectionAccessor           = (*Repository[entityProbe, int])(nil)
)

type entityProbe struct{}

func (entityProbe) EntityID() int { return 0 }
