package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"delivery-service/internal/app"
	"delivery-service/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Info("🚀 Notification worker starting",
		zap.String("queue", cfg.NotificationQueue),
		zap.String("worker_id", cfg.WorkerID),
		zap.Int("max_tasks", cfg.NotificationMaxTasks),
	)

	if err := app.NewWorker(cfg, logger).Run(ctx); err != nil {
		logger.Fatal("❌ Notification worker failed", zap.Error(err))
	}
	logger.Info("✅ Notification worker stopped")
}
