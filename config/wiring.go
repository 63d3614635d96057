package config

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // registers the "postgres" database/sql driver
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/AntonStoeckl/uow-eventbus-go/eventbus"
	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork/sqlengine"
)

// Opener returns a sqlengine.Opener which treats connection strings as database names of c.
func (c *Config) Opener() sqlengine.Opener {
	return func(ctx context.Context, name string) (*sqlengine.Database, error) {
		db, err := c.Database(name)
		if err != nil {
			return nil, err
		}

		return db.opener()(ctx, db.DSN)
	}
}

func (d Database) opener() sqlengine.Opener {
	switch d.Driver {
	case DriverPGX:
		return sqlengine.PGXPoolOpener(d.Pool.configurePGX)
	case DriverSQLX:
		driver := d.SQLXDriver
		if driver == "" {
			driver = defaultSQLXDriver
		}

		return sqlengine.SQLXOpener(driver, func(db *sqlx.DB) { d.Pool.configureSQL(db.DB) })
	default:
		return sqlengine.SQLDBOpener(d.Driver, d.Pool.configureSQL)
	}
}

func (p Pool) configurePGX(config *pgxpool.Config) {
	if p.MaxConns > 0 {
		config.MaxConns = int32(p.MaxConns) //nolint:gosec // validated as non-negative
	}

	if p.MinConns > 0 {
		config.MinConns = int32(p.MinConns) //nolint:gosec // validated as non-negative
	}

	if p.MaxConnLifetime > 0 {
		config.MaxConnLifetime = p.MaxConnLifetime.Std()
	}

	if p.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = p.MaxConnIdleTime.Std()
	}

	if p.HealthCheckPeriod > 0 {
		config.HealthCheckPeriod = p.HealthCheckPeriod.Std()
	}

	if p.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = p.ConnectTimeout.Std()
	}
}

func (p Pool) configureSQL(db *sql.DB) {
	if p.MaxConns > 0 {
		db.SetMaxOpenConns(p.MaxConns)
	}

	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}

	if p.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxConnLifetime.Std())
	}

	if p.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxConnIdleTime.Std())
	}
}

// NewEngine creates a sqlengine.Engine resolving connection strings through Opener.
func (c *Config) NewEngine(options ...sqlengine.Option) (*sqlengine.Engine, error) {
	return sqlengine.New(c.Opener(), options...)
}

// NewFactory creates a unitofwork.Factory on engine using the configured default options.
// The configured defaults are applied before options, so options can override them.
func (c *Config) NewFactory(engine unitofwork.Engine, options ...unitofwork.Option) (*unitofwork.Factory, error) {
	defaults, err := c.UnitOfWork.Options()
	if err != nil {
		return nil, err
	}

	return unitofwork.NewFactory(engine, append([]unitofwork.Option{unitofwork.WithDefaultOptions(defaults)}, options...)...)
}

// NewBus creates an eventbus.Bus with the configured concurrency limit.
func (c *Config) NewBus(options ...eventbus.Option) (*eventbus.Bus, error) {
	return eventbus.NewBus(append([]eventbus.Option{eventbus.WithMaxConcurrency(c.EventBus.MaxConcurrency)}, options...)...)
}
