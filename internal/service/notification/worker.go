// internal/service/notification/worker.go
package notification

import (
	"context"
	"fmt"

	domain "delivery-service/internal/domain/delivery"
	"delivery-service/internal/domain/session"
	xerrors "delivery-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Worker turns queued NotificationJobs into device pushes. It never asks for
// a retry: every job is acknowledged once it has been attempted.
type Worker struct {
	senders map[string]Sender
	logger  *zap.Logger
}

func NewWorker(fcm, apns Sender, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		senders: map[string]Sender{
			session.DeviceAndroid: fcm,
			session.DeviceIOS:     apns,
		},
		logger: logger.Named("notification_worker"),
	}
}

// Handle processes one queue body. Malformed jobs are logged and dropped
// without error; send failures are returned for the consumer to log.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	job, err := domain.ParseNotificationJob(body)
	if err != nil {
		w.logger.Warn("dropping unreadable notification job", zap.Error(err))
		return nil
	}
	if err := job.Validate(); err != nil {
		w.logger.Warn("invalid notification job", zap.String("user_id", job.UserID), zap.Error(err))
		return nil
	}

	payload := ParsePayload(job.NotificationMessage)
	w.logger.Info("received notification job",
		zap.String("user_id", job.UserID),
		zap.String("device_type", job.DeviceType),
		zap.String("type", payload.Type),
	)

	sender, ok := w.senders[job.DeviceType]
	if !ok || sender == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("invalid device type %q", job.DeviceType))
	}

	if err := sender.Send(ctx, job, payload); err != nil {
		return fmt.Errorf("push to user %s failed: %w", job.UserID, err)
	}

	w.logger.Info("push notification sent", zap.String("user_id", job.UserID), zap.String("device_type", job.DeviceType))
	return nil
}
