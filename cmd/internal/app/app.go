// Package app wires the Pigeon server runtime: config, logging, persistence,
// the HTTP API, and the realtime gateway.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pigeon/cmd/internal/auth"
	"pigeon/cmd/internal/chat"
	"pigeon/cmd/internal/metrics"
	"pigeon/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the Pigeon server runtime: it owns HTTP server wiring and the
// realtime gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	met *metrics.Metrics

	registry *realtime.Registry
	ws       *realtime.WSGateway

	auth *auth.Handler
	chat *chat.Handler

	uploadsDir string
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()

	st, dbPool, dbEnabled, msgStore, userStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	met := metrics.New()

	tokens, err := auth.NewTokenManager([]byte(cfg.TokenSecret), cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	revoked, err := newRevocationStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	authHandler := auth.NewHandler(log, userStore, tokens, revoked, cfg.SecureCookies)

	registry := realtime.NewRegistry(log, met)
	router := realtime.NewRouter(log, registry, met)
	ws := realtime.NewWSGateway(log, registry, authHandler)

	blobs, err := chat.NewFSBlobStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, err
	}

	chatHandler := chat.NewHandler(log, msgStore, userStore, blobs, router, auth.Identity)

	return &App{
		cfg:        cfg,
		log:        log,
		store:      st,
		dbPool:     dbPool,
		dbEnabled:  dbEnabled,
		met:        met,
		registry:   registry,
		ws:         ws,
		auth:       authHandler,
		chat:       chatHandler,
		uploadsDir: blobs.Dir(),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.met, a.ws, a.auth, a.chat, a.uploadsDir)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)), a.log, a.met),
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

	// Close store resources (pool etc).
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

// newStore decides between Mongo, Postgres, and the in-memory dev store.
// Mongo takes precedence when both backends are configured.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, chat.MessageStore, chat.UserStore, error) {
	switch {
	case cfg.MongoURI != "":
		client, err := NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}

		store, err := chat.NewMongoStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, false, nil, nil, err
		}

		log.Info("db.enabled.mongo_store", "database", cfg.MongoDatabase)
		return mongoStore{client: client}, nil, true, store, store, nil

	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}

		// Ownership model:
		// - app owns pool lifecycle
		// - PostgresStore.Close() is a no-op
		store, err := chat.NewPostgresStore(pool) // default schema "pigeon"
		if err != nil {
			pool.Close()
			return nil, nil, false, nil, nil, err
		}

		log.Info("db.enabled.postgres_store")
		return pgStore{pool: pool}, pool, true, store, store, nil

	default:
		log.Info("db.disabled.inmemory_store")
		mem := chat.NewInMemoryStore()
		return nopStore{}, nil, false, mem, mem, nil
	}
}

// newRevocationStore picks Redis when configured, process memory otherwise.
func newRevocationStore(ctx context.Context, cfg Config, log Logger) (auth.RevocationStore, error) {
	if cfg.RedisAddr == "" {
		log.Info("revocation.inmemory")
		return auth.NewMemoryRevocationStore(), nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info("revocation.redis", "addr", cfg.RedisAddr)
	return auth.NewRedisRevocationStore(client, "pigeon:revoked:"), nil
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s pgStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type mongoStore struct {
	client *mongo.Client
}

func (s mongoStore) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}
