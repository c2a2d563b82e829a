// Package database provides the MySQL client adapters used by gorewinder.
//
// Every adapter pins a single session (*sql.Conn) for its lifetime so that
// session variables such as FOREIGN_KEY_CHECKS survive from one statement to
// the next.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"go.uber.org/multierr"

	"github.com/dbsmedya/gorewinder/internal/config"
)

// ErrUnknownAdapter is returned when the adapter name is not registered.
var ErrUnknownAdapter = errors.New("unknown database adapter")

// Result reports the outcome of Execute.
type Result struct {
	RowsAffected int64
}

// Client is the capability the cleaner needs from a database connection.
type Client interface {
	// Execute runs a statement (or a multi-statement batch) on the pinned session.
	Execute(ctx context.Context, query string) (Result, error)
	// Query runs a statement and returns every row as a slice of column values.
	Query(ctx context.Context, query string) ([][]any, error)
	// Ping verifies the pinned session is alive.
	Ping(ctx context.Context) error
	// Close releases the session and, when the client opened it, the pool.
	Close() error
}

type factory func(ctx context.Context, db *sql.DB, ownsDB bool) (Client, error)

var adapters = map[string]factory{
	config.AdapterMySQL: newSQLClient,
	config.AdapterSQLX:  newSQLXClient,
	config.AdapterGorm:  newGormClient,
}

// Open connects to the database described by cfg and wraps the connection
// with the named adapter. An empty adapter selects the mysql adapter.
// Connection failures are returned as-is; there is no retry.
func Open(ctx context.Context, adapter string, cfg *config.DatabaseConfig) (Client, error) {
	build, err := lookup(adapter)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Database, err)
	}
	limitPool(db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database, err)
	}

	client, err := build(ctx, db, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return client, nil
}

// FromDB wraps an existing pool with the named adapter. The pool stays owned
// by the caller: closing the client only releases its pinned session.
func FromDB(ctx context.Context, adapter string, db *sql.DB) (Client, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	build, err := lookup(adapter)
	if err != nil {
		return nil, err
	}

	return build(ctx, db, false)
}

func lookup(adapter string) (factory, error) {
	if adapter == "" {
		adapter = config.AdapterMySQL
	}
	build, ok := adapters[adapter]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, adapter)
	}
	return build, nil
}

// limitPool caps an owned pool at the one session the client pins.
func limitPool(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
}

// BuildDSN constructs a MySQL DSN from configuration.
// multiStatements is always enabled because the delete batch is sent as one
// statement string.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=true&multiStatements=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// session is the pinned connection shared by every adapter.
type session struct {
	db     *sql.DB
	conn   *sql.Conn
	ownsDB bool
}

func pin(ctx context.Context, db *sql.DB, ownsDB bool) (*session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session: %w", err)
	}
	return &session{db: db, conn: conn, ownsDB: ownsDB}, nil
}

func (s *session) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *session) Close() error {
	var errs []error

	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, fmt.Errorf("session close: %w", err))
	}
	if s.ownsDB {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pool close: %w", err))
		}
	}

	return multierr.Combine(errs...)
}

// scanRows reads every row into generic values. Byte slices are converted to
// strings so callers can compare text columns directly.
func scanRows(rows *sql.Rows) ([][]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeRow(values []any) []any {
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values
}
