// Package app wires the Parley server runtime: config, logging, HTTP routes,
// and the realtime chat gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"parley/cmd/identity"
	authapi "parley/cmd/internal/auth/api"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/chat"
	"parley/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// stores bundles the persistence backends picked at startup.
type stores struct {
	users    identity.Store
	sessions session.Store
	chats    chat.Store
}

// App is the server runtime: it owns HTTP server wiring and the gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store   Store
	metrics *Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws   *realtime.WSGateway
	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, backends, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		return nil, err
	}
	sessionSvc := session.NewService(sessCfg, backends.sessions, tokens, backends.users)

	metrics := NewMetrics()

	authCfg := authapi.LoadConfigFromEnv()
	authHandler, err := authapi.NewHandler(log, authCfg, backends.users, sessionSvc, backends.chats, metrics)
	if err != nil {
		return nil, err
	}

	ws := realtime.NewWSGateway(log, realtime.NewRegistry(log), backends.chats, backends.users, tokens, metrics)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		metrics:   metrics,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		auth:      authHandler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
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

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
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

// newStore decides between Postgres-backed persistence and in-memory dev stores.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, stores{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			chats:    chat.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, stores{}, err
	}

	log.Info("db.enabled.postgres_store")

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}
	sessions, err := session.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}
	chats, err := chat.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}

	// Ownership model: app owns the pool lifecycle, the stores do not.
	return dbStore{pool: pool}, pool, true, stores{
		users:    users,
		sessions: sessions,
		chats:    chats,
	}, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
