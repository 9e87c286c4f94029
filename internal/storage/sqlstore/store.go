// Package sqlstore implements storage.Store and session.Store on a SQL
// database. SQLite runs embedded through a WASM build; MySQL (including a
// Dolt sql-server) and PostgreSQL are reached over the network.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/storage"
)

// setupWASMCache points the SQLite WASM runtime at an on-disk compilation
// cache, falling back to an in-memory one.
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "redmine-importer", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = ""
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
	return cacheDir
}

func init() {
	_ = setupWASMCache()
}

// Config selects and addresses the database.
type Config struct {
	Driver string // sqlite (default), mysql or postgres
	DSN    string // file path or ":memory:" for sqlite; driver DSN otherwise

	// BusyTimeout bounds SQLite lock waits; DefaultBusyTimeout when zero.
	BusyTimeout time.Duration
}

// Store is a SQL-backed store.
type Store struct {
	db      *sqlx.DB
	dialect *dialect
	closed  atomic.Bool
	now     func() time.Time
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Seeder = (*Store)(nil)
	_ session.Store  = (*Store)(nil)
)

const serverRetryMaxElapsed = 30 * time.Second

// Open connects to the database described by cfg and creates any missing
// tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	inMemory := false
	if d.name == "sqlite" {
		if dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		if dsn, inMemory, err = sqliteDSN(dsn, cfg.BusyTimeout); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// SQLite allows a single writer; one connection also keeps an
		// in-memory database alive for the life of the store.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if !inMemory {
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
			}
		}
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.withRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// newWithDB wraps an already open handle. The schema is not touched.
func newWithDB(db *sql.DB, driver string) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: sqlx.NewDb(db, d.driverName), dialect: d, now: time.Now}, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range s.dialect.statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w\nSQL: %s", err, stmt)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Driver returns the dialect in use.
func (s *Store) Driver() string {
	return s.dialect.name
}

// withRetry retries transient connection errors against a database server.
// Embedded SQLite runs op once.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	if !s.dialect.server {
		return op()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return s.withRetry(ctx, func() error {
		return s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	})
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return s.withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
	})
}

// inTx runs fn in a transaction and classifies the resulting error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	query = s.db.Rebind(query)
	if s.dialect.returning {
		var id int64
		err := sqlx.GetContext(ctx, ext, &id, query+" RETURNING id", args...)
		return id, err
	}
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) exec(ctx context.Context, ext sqlx.ExecerContext, query string, args ...any) error {
	_, err := ext.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}
