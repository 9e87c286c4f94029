package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/two-pack/redmine-importer/internal/config"
	"github.com/two-pack/redmine-importer/internal/importer"
	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/storage/sqlstore"
	"github.com/two-pack/redmine-importer/internal/telemetry"
	"github.com/two-pack/redmine-importer/internal/types"
)

// defaultDBPath is used for SQLite when neither --db nor RMI_DB is set.
var defaultDBPath = filepath.Join(".rmi", "rmi.db")

// app bundles what a command needs. close releases every connection.
type app struct {
	db       *sqlstore.Store
	store    storage.Store
	sessions session.Store
	importer *importer.Importer
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// openApp connects the record store and the session backend.
func openApp(ctx context.Context) (*app, error) {
	dsn := dbPath
	if dsn == "" {
		if driverName != "" && driverName != "sqlite" {
			return nil, fmt.Errorf("--db is required for driver %q", driverName)
		}
		dsn = defaultDBPath
	}
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:      driverName,
		DSN:         dsn,
		BusyTimeout: config.GetDuration("sqlite.busy_timeout"),
	})
	if err != nil {
		return nil, err
	}
	a := &app{db: db, store: telemetry.WrapStore(db), closers: []func() error{db.Close}}

	switch backend := config.GetString("session.backend"); backend {
	case "", "sql":
		a.sessions = db
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: config.GetString("redis.addr")})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			a.close()
			return nil, fmt.Errorf("connect to redis at %s: %w", config.GetString("redis.addr"), err)
		}
		a.sessions = session.NewRedisStore(client, config.GetString("redis.prefix"))
		a.closers = append(a.closers, client.Close)
	default:
		a.close()
		return nil, fmt.Errorf("unknown session backend %q (want sql or redis)", backend)
	}

	a.importer = importer.New(a.store, a.sessions, importer.WithRetention(config.GetDuration("import.retention")))
	return a, nil
}

// actor resolves the acting user from --actor.
func (a *app) actor(ctx context.Context) (*types.User, error) {
	if actorLogin == "" {
		return nil, errors.New("no actor: pass --actor or set RMI_ACTOR")
	}
	u, err := a.store.FindUserByLogin(ctx, actorLogin)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("actor %q is not a known user", actorLogin)
	}
	return u, err
}
