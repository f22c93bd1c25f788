package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"accounting-engine/internal/adapters/cli"
	"accounting-engine/internal/app"
	"accounting-engine/internal/cache"
	"accounting-engine/internal/config"
	"accounting-engine/internal/db"
	"accounting-engine/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Pure commands need no database, so configuration errors only surface on connect.
	cfg, cfgErr := config.Load()
	logCfg := logger.DefaultConfig()
	if cfgErr == nil {
		logCfg = cfg.LoggerConfig()
	}
	logCfg.Output = "stderr"
	if err := logger.Setup(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	backend := cli.Backend{
		Connect: func(ctx context.Context) (app.ApplicationService, func(), error) {
			if cfgErr != nil {
				return nil, nil, cfgErr
			}
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			rdb := cache.Connect(ctx, cfg.RedisAddr)
			release := func() {
				if rdb != nil {
					rdb.Close()
				}
				pool.Close()
			}
			return app.NewFromPool(pool, cache.NewBalanceCache(rdb, cfg.BalanceCacheTTL)), release, nil
		},
		Migrate: func(ctx context.Context) ([]string, error) {
			if cfgErr != nil {
				return nil, cfgErr
			}
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return nil, err
			}
			defer pool.Close()
			return db.Migrate(ctx, pool)
		},
	}

	if err := cli.Execute(context.Background(), backend, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
