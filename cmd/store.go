package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/cache"
	"github.com/nationalarchives/wa-frontend/internal/resilience"
	"github.com/nationalarchives/wa-frontend/internal/store"
)

// initStore opens the configured store, retrying while the database is not
// yet accepting connections.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err := resilience.DoVal(ctx, resilience.StartupRetryConfig(cfg.Store.ConnectAttempts),
			func(ctx context.Context) (*store.PostgresStore, error) {
				return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
					MaxConns: cfg.Store.MaxConns,
					MinConns: cfg.Store.MinConns,
				})
			})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache builds the configured cache. The postgres and sqlite drivers keep
// entries in the store's own database so that a CLI sync invalidates what the
// web server serves.
func initCache(st store.Store) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return cache.NewMemory(cfg.Cache.MaxEntries), nil
	case "postgres":
		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return nil, eris.New("cache driver postgres requires the postgres store")
		}
		return cache.NewPostgres(pg.Pool()), nil
	case "sqlite":
		lite, ok := st.(*store.SQLiteStore)
		if !ok {
			return nil, eris.New("cache driver sqlite requires the sqlite store")
		}
		return cache.NewSQLite(lite.DB()), nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// openStore opens and migrates the store. The caller closes it.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}
