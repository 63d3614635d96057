package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

// Supported database drivers.
const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLX     = "sqlx"
	DriverSQLite   = "sqlite"

	defaultSQLXDriver = DriverPostgres
)

var (
	// ErrReadFailed is joined with the os error when the config file could not be read.
	ErrReadFailed = errors.New("reading the config file failed")

	// ErrDecodeFailed is joined with the decoder error when the config could not be decoded.
	ErrDecodeFailed = errors.New("decoding the config failed")

	// ErrUnsupportedFormat is returned for file extensions other than .yaml, .yml, .toml and .json.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrInvalidConfig is joined with every validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnknownDatabase is returned when a connection string names no configured database.
	ErrUnknownDatabase = errors.New("unknown database")
)

// Config is the root of a config file.
type Config struct {
	Databases  map[string]Database `json:"databases"    toml:"databases"    yaml:"databases"`
	UnitOfWork UnitOfWork          `json:"unit_of_work" toml:"unit_of_work" yaml:"unit_of_work"`
	EventBus   EventBus            `json:"event_bus"    toml:"event_bus"    yaml:"event_bus"`
}

// Database describes one named database.
type Database struct {
	// Driver is one of pgx, postgres, sqlx or sqlite.
	Driver string `json:"driver" toml:"driver" yaml:"driver"`

	// DSN may reference environment variables as $VAR or ${VAR}.
	DSN string `json:"dsn" toml:"dsn" yaml:"dsn"`

	// SQLXDriver is the database/sql driver sqlx uses. Defaults to postgres.
	SQLXDriver string `json:"sqlx_driver" toml:"sqlx_driver" yaml:"sqlx_driver"`

	Pool Pool `json:"pool" toml:"pool" yaml:"pool"`
}

// Pool holds connection pool sizing. Zero values keep the driver defaults.
// MinConns, HealthCheckPeriod and ConnectTimeout only apply to pgx pools, MaxIdleConns only to
// database/sql pools.
type Pool struct {
	MaxConns          int      `json:"max_conns"           toml:"max_conns"           yaml:"max_conns"`
	MinConns          int      `json:"min_conns"           toml:"min_conns"           yaml:"min_conns"`
	MaxIdleConns      int      `json:"max_idle_conns"      toml:"max_idle_conns"      yaml:"max_idle_conns"`
	MaxConnLifetime   Duration `json:"max_conn_lifetime"   toml:"max_conn_lifetime"   yaml:"max_conn_lifetime"`
	MaxConnIdleTime   Duration `json:"max_conn_idle_time"  toml:"max_conn_idle_time"  yaml:"max_conn_idle_time"`
	HealthCheckPeriod Duration `json:"health_check_period" toml:"health_check_period" yaml:"health_check_period"`
	ConnectTimeout    Duration `json:"connect_timeout"     toml:"connect_timeout"     yaml:"connect_timeout"`
}

// UnitOfWork holds the default options of units of work. Empty fields keep the built-in defaults.
type UnitOfWork struct {
	IsolationLevel string   `json:"isolation_level" toml:"isolation_level" yaml:"isolation_level"`
	Timeout        Duration `json:"timeout"         toml:"timeout"         yaml:"timeout"`
	Scope          string   `json:"scope"           toml:"scope"           yaml:"scope"`
	AsyncFlow      string   `json:"async_flow"      toml:"async_flow"      yaml:"async_flow"`
}

// EventBus holds the settings of the event bus.
type EventBus struct {
	MaxConcurrency int `json:"max_concurrency" toml:"max_concurrency" yaml:"max_concurrency"`
}

// Duration is a time.Duration written as a Go duration string like "30s" or "5m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which all supported formats honor.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Options converts the settings to unitofwork.Options.
func (u UnitOfWork) Options() (unitofwork.Options, error) {
	var (
		options unitofwork.Options
		err     error
	)

	if u.IsolationLevel != "" {
		if options.IsolationLevel, err = unitofwork.ParseIsolationLevel(u.IsolationLevel); err != nil {
			return unitofwork.Options{}, err
		}
	}

	if u.Scope != "" {
		if options.Scope, err = unitofwork.ParseScope(u.Scope); err != nil {
			return unitofwork.Options{}, err
		}
	}

	if u.AsyncFlow != "" {
		if options.AsyncFlow, err = unitofwork.ParseAsyncFlow(u.AsyncFlow); err != nil {
			return unitofwork.Options{}, err
		}
	}

	options.Timeout = u.Timeout.Std()

	if err := options.Validate(); err != nil {
		return unitofwork.Options{}, err
	}

	return options.WithDefaults(unitofwork.DefaultOptions()), nil
}

// Validate checks every database and the unit-of-work settings and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range c.DatabaseNames() {
		db := c.Databases[name]

		switch db.Driver {
		case DriverPGX, DriverPostgres, DriverSQLX, DriverSQLite:
		default:
			errs = append(errs, fmt.Errorf("database %q: unknown driver %q", name, db.Driver))
		}

		if strings.TrimSpace(db.DSN) == "" {
			errs = append(errs, fmt.Errorf("database %q: empty dsn", name))
		}

		if db.Pool.MaxConns < 0 || db.Pool.MinConns < 0 || db.Pool.MaxIdleConns < 0 {
			errs = append(errs, fmt.Errorf("database %q: negative pool size", name))
		}

		if db.Pool.MaxConns > 0 && db.Pool.MinConns > db.Pool.MaxConns {
			errs = append(errs, fmt.Errorf("database %q: min_conns exceeds max_conns", name))
		}
	}

	if _, err := c.UnitOfWork.Options(); err != nil {
		errs = append(errs, err)
	}

	if c.EventBus.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("event bus: negative max_concurrency %d", c.EventBus.MaxConcurrency))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}

	return nil
}

// DatabaseNames returns the configured database names, sorted.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Database returns the database with the given name, with environment variables in its DSN expanded.
func (c *Config) Database(name string) (Database, error) {
	db, ok := c.Databases[name]
	if !ok {
		return Database{}, fmt.Errorf("%w: %q", ErrUnknownDatabase, name)
	}

	db.DSN = os.ExpandEnv(db.DSN)

	return db, nil
}
