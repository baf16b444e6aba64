package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/lib/pq"              // postgres driver
	_ "modernc.org/sqlite"             // embedded sqlite driver (pure Go)
)

// Options selects and configures a backend.  For sqlite only Path is
// consulted; for mysql/postgres the host/port/name/credential fields are.
type Options struct {
	Driver string // "sqlite", "mysql" or "postgres"
	Path   string // sqlite file path (":memory:" allowed)
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// DB bundles the connection pool with its dialect so every query issued
// through it is rebound transparently.  Repositories depend on *DB and
// never on *sql.DB directly.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
}

// New wraps an already-open pool.  Used by tests and the CLI.
func New(sqlDB *sql.DB, d Dialect) *DB {
	return &DB{SQL: sqlDB, Dialect: d}
}

// Open connects to the configured backend and verifies the connection.
// The liveness ping is retried a small fixed number of times with a brief
// delay so a database that is still starting up does not fail the boot.
func Open(o Options) (*DB, error) {
	var (
		driver  string
		dsn     string
		dialect Dialect
	)
	switch strings.ToLower(o.Driver) {
	case "mysql":
		driver, dialect = "mysql", MySQL
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		port := o.Port
		if port == "" {
			port = "3306"
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		dsn = fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, port, o.Name)
	case "postgres":
		driver, dialect = "postgres", Postgres
		port := o.Port
		if port == "" {
			port = "5432"
		}
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			o.Host, port, o.User, o.Pass, o.Name)
	case "", "sqlite":
		driver, dialect = "sqlite", SQLite
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", o.Path)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", o.Driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if dialect == SQLite {
		// One writer at a time; the embedded engine serializes anyway and a
		// single connection avoids SQLITE_BUSY under concurrent handlers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	var pingErr error
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = sqlDB.PingContext(ctx)
		cancel()
		if pingErr == nil {
			return &DB{SQL: sqlDB, Dialect: dialect}, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	_ = sqlDB.Close()
	return nil, fmt.Errorf("database unreachable after retries: %w", pingErr)
}

// Close releases the pool.
func (d *DB) Close() error { return d.SQL.Close() }

// ExecContext rebinds and executes a statement.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.SQL.ExecContext(ctx, d.Dialect.Rebind(query), args...)
}

// QueryContext rebinds and runs a query returning rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.SQL.QueryContext(ctx, d.Dialect.Rebind(query), args...)
}

// QueryRowContext rebinds and runs a single-row query.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.SQL.QueryRowContext(ctx, d.Dialect.Rebind(query), args...)
}

// InsertReturningID executes an INSERT and returns the generated primary
// key, using RETURNING where the backend supports it and the last-insert-id
// primitive elsewhere.  The caller's statement must not already carry a
// RETURNING clause; one is appended as needed.
func (d *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertReturningID(ctx, d.SQL, d.Dialect, query, args...)
}

// Tx is a transaction with the same rebinding behavior as DB.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertReturningID(ctx, t.tx, t.dialect, query, args...)
}

// WithTx begins a transaction, runs fn, and commits on clean return or
// rolls back on error/panic.  Panics are rethrown after rollback.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(ctx, &Tx{tx: tx, dialect: d.Dialect})
	return err
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertReturningID(ctx context.Context, run runner, d Dialect, query string, args ...any) (int64, error) {
	if d == Postgres {
		q := d.Rebind(query)
		if !strings.Contains(strings.ToUpper(q), "RETURNING") {
			q += " RETURNING id"
		}
		var id int64
		if err := run.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := run.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
