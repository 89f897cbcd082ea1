package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/logging"
	"attendance-kiosk/internal/queue"
	"attendance-kiosk/internal/store"
)

// Worker drains audit events published by the kiosk to Redis and appends
// them to the database.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Production())

	if cfg.RedisAddr == "" {
		logger.Error("REDIS_ADDR is required for the audit worker")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet; will keep retrying", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "")
	logger.Info("audit worker started", "redis", cfg.RedisAddr)
	if err := audit.Drain(ctx, q, audit.NewStore(db.DB), logger); err != nil {
		logger.Error("queue consume failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
