package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"checkin/internal/audit"
	"checkin/internal/config"
	"checkin/internal/logger"
	"checkin/internal/queue"
	"checkin/internal/store"
)

// Worker drains audit events from the queue into the Postgres audit log.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "checkin-worker")
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the in-memory queue is drained inside the API process")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
	}

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis config invalid", zap.Error(err))
	}
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet; consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultAuditKey, log)
	consumer := audit.NewConsumer(q, audit.NewRepository(db.Client), log.Named("audit"))

	log.Info("worker started, waiting for audit events", zap.String("queue", queue.DefaultAuditKey))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
