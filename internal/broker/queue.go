// internal/broker/queue.go
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pollTimeout  = 5 * time.Second
	retryBackoff = time.Second
)

var errQueueEmpty = errors.New("queue empty")

// HandlerFunc processes one queued body. Its error is logged; the body is
// acknowledged either way.
type HandlerFunc func(ctx context.Context, body []byte) error

type listQueue interface {
	take(ctx context.Context, timeout time.Duration) (string, error)
	ack(ctx context.Context, raw string) error
	requeue(ctx context.Context) (int, error)
}

// redisList moves each taken item into a per-consumer processing list so a
// crashed consumer can put its in-flight items back on restart.
type redisList struct {
	client     *redis.Client
	name       string
	processing string
}

func (q *redisList) take(ctx context.Context, timeout time.Duration) (string, error) {
	raw, err := q.client.BLMove(ctx, q.name, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return "", errQueueEmpty
	}
	return raw, err
}

func (q *redisList) ack(ctx context.Context, raw string) error {
	return q.client.LRem(ctx, q.processing, 1, raw).Err()
}

func (q *redisList) requeue(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.name, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// QueueConsumer drains a Redis list with at most maxTasks handlers in flight.
type QueueConsumer struct {
	queue    listQueue
	name     string
	maxTasks int
	logger   *zap.Logger
}

// NewQueueConsumer consumes queueName. consumerID must be stable across
// restarts of the same worker and distinct between workers.
func NewQueueConsumer(client *redis.Client, queueName, consumerID string, maxTasks int, logger *zap.Logger) *QueueConsumer {
	q := &redisList{
		client:     client,
		name:       queueName,
		processing: fmt.Sprintf("%s:processing:%s", queueName, consumerID),
	}
	return newQueueConsumer(q, queueName, maxTasks, logger)
}

func newQueueConsumer(q listQueue, name string, maxTasks int, logger *zap.Logger) *QueueConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTasks <= 0 {
		maxTasks = 1
	}
	return &QueueConsumer{
		queue:    q,
		name:     name,
		maxTasks: maxTasks,
		logger:   logger.Named("queue").With(zap.String("queue", name)),
	}
}

// Run consumes until ctx is cancelled, then waits for in-flight handlers.
func (c *QueueConsumer) Run(ctx context.Context, handle HandlerFunc) error {
	if n, err := c.queue.requeue(ctx); err != nil {
		return fmt.Errorf("failed to requeue in-flight items: %w", err)
	} else if n > 0 {
		c.logger.Info("requeued items left in flight by a previous run", zap.Int("count", n))
	}

	c.logger.Info("queue consumer started", zap.Int("max_tasks", c.maxTasks))

	var g errgroup.Group
	g.SetLimit(c.maxTasks)

	for ctx.Err() == nil {
		raw, err := c.queue.take(ctx, pollTimeout)
		if errors.Is(err, errQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn("failed to take from queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(retryBackoff):
			}
			continue
		}

		g.Go(func() error {
			c.process(ctx, raw, handle)
			return nil
		})
	}

	_ = g.Wait()
	c.logger.Info("queue consumer stopped")
	return nil
}

func (c *QueueConsumer) process(ctx context.Context, raw string, handle HandlerFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("queue handler panicked", zap.Any("panic", rec))
		}
		// Acknowledge after the attempt, whatever its outcome, and even
		// when shutting down.
		if err := c.queue.ack(context.WithoutCancel(ctx), raw); err != nil {
			c.logger.Warn("failed to acknowledge queue item", zap.Error(err))
		}
	}()

	if err := handle(ctx, []byte(raw)); err != nil {
		c.logger.Warn("queue handler failed", zap.Error(err))
	}
}
