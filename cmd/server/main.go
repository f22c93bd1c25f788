package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	webAdapter "accounting-engine/internal/adapters/web"
	"accounting-engine/internal/app"
	"accounting-engine/internal/cache"
	"accounting-engine/internal/config"
	"accounting-engine/internal/db"
	"accounting-engine/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.LoggerConfig()); err != nil {
		log.Fatalf("logger: %v", err)
	}
	logr := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal(err, "database")
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		logger.Fatal(err, "migrations")
	}
	if len(applied) > 0 {
		logr.Info().Strs("applied", applied).Msg("migrations applied")
	}

	rdb := cache.Connect(ctx, cfg.RedisAddr)
	if rdb != nil {
		defer rdb.Close()
	}
	svc := app.NewFromPool(pool, cache.NewBalanceCache(rdb, cfg.BalanceCacheTTL))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logr.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err, "server")
	}
	logr.Info().Msg("server stopped")
}
