// Package app wires the devicegate server runtime: config, logging, stores,
// HTTP routes, and middleware.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	deviceapi "devicegate/cmd/internal/device/api"
	"devicegate/cmd/internal/device/session"
	"devicegate/cmd/internal/identity"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the devicegate server runtime: it owns the HTTP server wiring and
// the session store lifecycle.
type App struct {
	cfg Config
	log *slog.Logger

	store session.Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	devices *deviceapi.Handler
	metrics *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		closeStore(store, dbPool)
		return nil, err
	}

	idCfg, err := identity.LoadConfigFromEnv()
	if err != nil {
		closeStore(store, dbPool)
		return nil, err
	}
	if idCfg.InsecureDecode {
		log.Warn("identity.insecure_decode.enabled", "note", "bearer tokens are NOT verified; dev only")
	}
	resolver, err := identity.NewJWTResolver(idCfg)
	if err != nil {
		closeStore(store, dbPool)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	devices := deviceapi.NewHandler(log, deviceapi.LoadConfigFromEnv(), resolver, session.NewService(sessCfg, store), registry)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		devices:   devices,
		metrics:   registry,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.devices, a.metrics)

	handler := WithRequestLogging(mux, a.log)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres, SQLite, and the in-memory dev store.
//
// Ownership model: the app owns the pool lifecycle; PostgresStore.Close is a
// no-op. SQLite and memory stores own their own resources.
func newStore(ctx context.Context, cfg Config, log *slog.Logger) (session.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, false, err
		}
		log.Info("db.enabled.postgres_store")
		return session.NewPostgresStore(pool), pool, true, nil
	}

	if cfg.SQLitePath != "" {
		store, err := session.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, false, err
		}
		log.Info("db.enabled.sqlite_store", "path", cfg.SQLitePath)
		return store, nil, false, nil
	}

	log.Info("db.disabled.inmemory_store")
	return session.NewMemoryStore(), nil, false, nil
}

func closeStore(store session.Store, pool *pgxpool.Pool) {
	if store != nil {
		_ = store.Close()
	}
	if pool != nil {
		pool.Close()
	}
}
