package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/api"
	"github.com/chatmesh-io/chatmesh/internal/config"
	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/gateway"
	"github.com/chatmesh-io/chatmesh/internal/pipeline"
	"github.com/chatmesh-io/chatmesh/internal/presence"
	"github.com/chatmesh-io/chatmesh/internal/session"
	"github.com/chatmesh-io/chatmesh/internal/store"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared-secret signer for queue envelopes and client frames
	signer := newSigner(cfg, logger)

	// Broker transport
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
		logger.Warn().Msg("REDIS_URL not set, using localhost broker")
	}
	queue := transport.NewRedisQueue(cfg.RedisURL, signer, logger)
	defer queue.Close()

	// Presence cache on its own Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	cache := presence.NewRedisCache(redisClient, cfg.PresenceTTL)

	// Persistence: PostgreSQL when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Gateway
	connStore := gateway.NewConnectionStore()
	holder := gateway.NewHolder(connStore, queue, logger, cfg.IdleTimeout, cfg.MaxFrameBytes)
	sender := gateway.NewSender(connStore, logger)

	// Pipeline stages
	sessions := session.NewJWTValidator(cfg.JWTSecret)
	receiver := pipeline.NewReceiver(queue, sessions, cache, signer, logger)
	processor := pipeline.NewProcessor(queue, dataStore, logger)
	router := pipeline.NewRouter(queue, dataStore, cache, logger)

	var wg sync.WaitGroup
	runStage := func(name string, f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Str("stage", name).Msg("stage started")
			f()
		}()
	}
	runStage("receiver", func() {
		pipeline.RunStage(ctx, logger, queue, transport.QueueRaw, cfg.WorkerLimit, receiver.Handle)
	})
	runStage("processor", func() {
		pipeline.RunStage(ctx, logger, queue, transport.QueueProcess, cfg.WorkerLimit, processor.Handle)
	})
	runStage("router", func() {
		pipeline.RunStage(ctx, logger, queue, transport.QueueRoute, cfg.WorkerLimit, router.Handle)
	})
	runStage("sender", func() {
		pipeline.RunStage(ctx, logger, queue, transport.QueueSend, cfg.WorkerLimit, sender.Deliver)
	})

	// HTTP surface: /ws, /healthz, /metrics
	handler := api.NewRouter(logger, holder, api.Health(map[string]api.Pinger{
		"broker": queue,
		"store":  dataStore,
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming WebSocket writes manage their own deadlines
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chatmesh server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stages stop reading on cancellation; in-flight workers finish.
	wg.Wait()
	logger.Info().Msg("server stopped")
}

// newSigner builds the shared-secret signer, generating an ephemeral key
// in development when none is configured.
func newSigner(cfg *config.Config, logger zerolog.Logger) *crypto.Signer {
	if cfg.SigningSecret != "" {
		signer, err := crypto.NewSigner(cfg.SigningSecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid SIGNING_SECRET")
		}
		return signer
	}

	if !cfg.IsDevelopment() {
		logger.Fatal().Msg("SIGNING_SECRET is required outside development")
	}

	key := make([]byte, 32)
	rand.Read(key)
	signer, err := crypto.NewSignerFromBytes(key)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create signer")
	}
	logger.Warn().Msg("SIGNING_SECRET not set, using ephemeral development key")
	return signer
}
