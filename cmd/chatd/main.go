package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	orderchat "github.com/wasla-delivery/orderchat"
	"github.com/wasla-delivery/orderchat/internal/auth"
	"github.com/wasla-delivery/orderchat/internal/blob"
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/notify"
	"github.com/wasla-delivery/orderchat/internal/repository"
	"github.com/wasla-delivery/orderchat/internal/server"
	"github.com/wasla-delivery/orderchat/internal/store"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(orderchat.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis; the chat works without the cache, so a missing Redis
	// degrades instead of aborting startup.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	cache, err := store.NewCache(rdb)
	if err != nil {
		slog.Warn("redis unavailable, history cache disabled", "error", err)
		cache = nil
	}

	// Initialize adapters
	messageStore := store.NewPostgres(pool, cache)
	blobs := blob.NewPostgres(pool, cfg.PublicBaseURL)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Status sinks: local log, plus Telegram ops alerts when configured
	sinks := notify.Multi{notify.NewLogSink(logger)}
	if cfg.OpsAlertsEnabled() {
		b, err := bot.New(cfg.OpsBotToken)
		if err != nil {
			slog.Error("failed to create ops bot", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, notify.NewTelegram(b, cfg))
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Deps{
		Store:    messageStore,
		Uploader: blobs,
		Blobs:    blobs,
		Redis:    rdb,
		Verifier: verifier,
		Sink:     sinks,
		Cfg:      cfg,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("starting chat server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	srv.Shutdown()

	slog.Info("chat server stopped gracefully")
}
