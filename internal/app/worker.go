// internal/app/worker.go
package app

import (
	"context"
	"fmt"

	"delivery-service/internal/broker"
	"delivery-service/internal/config"
	"delivery-service/internal/db"
	"delivery-service/internal/pkg/jwt"
	"delivery-service/internal/service/notification"

	"go.uber.org/zap"
)

// Worker is the notification queue consumer process.
type Worker struct {
	cfg    config.AppConfig
	logger *zap.Logger
}

func NewWorker(cfg config.AppConfig, logger *zap.Logger) *Worker {
	return &Worker{cfg: cfg, logger: logger}
}

// Run consumes the notification queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addr:     w.cfg.RedisAddr,
		Password: w.cfg.RedisPass,
		DB:       w.cfg.RedisDB,
		PoolSize: w.cfg.NotificationMaxTasks + 2,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	w.logger.Info("[REDIS] ✅ Connected successfully")

	var fcm, apns notification.Sender
	if w.cfg.FCM.ServerKey != "" {
		fcm = notification.NewFCMSender(w.cfg.FCM.URL, w.cfg.FCM.ServerKey, nil)
	} else {
		w.logger.Warn("FCM_SERVER_KEY not set, android pushes will fail")
	}

	tokens, err := jwt.Load(w.cfg.APNs.KeyPath, w.cfg.APNs.KeyID, w.cfg.APNs.TeamID)
	if err != nil {
		w.logger.Warn("APNs key unavailable, ios pushes will fail", zap.Error(err))
	} else {
		baseURL := notification.APNsDevelopmentURL
		if w.cfg.APNs.Production {
			baseURL = notification.APNsProductionURL
		}
		apns = notification.NewAPNsSender(notification.APNsConfig{
			BaseURL:   baseURL,
			Topic:     w.cfg.APNs.Topic,
			VoipTopic: w.cfg.APNs.VoipTopic,
		}, tokens, nil)
	}

	worker := notification.NewWorker(fcm, apns, w.logger)
	consumer := broker.NewQueueConsumer(redisClient, w.cfg.NotificationQueue, w.cfg.WorkerID, w.cfg.NotificationMaxTasks, w.logger)

	return consumer.Run(ctx, worker.Handle)
}
