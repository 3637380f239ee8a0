// internal/broker/redis.go
package broker

import (
	"context"
	"fmt"

	domain "delivery-service/internal/domain/delivery"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the node's only broker. Live relays go over Pub/Sub, which drops
// messages nobody is subscribed to; notification jobs go onto a list and
// survive until a worker takes them.
type Redis struct {
	client      *redis.Client
	relayPrefix string
	logger      *zap.Logger
}

func NewRedis(client *redis.Client, relayPrefix string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:      client,
		relayPrefix: relayPrefix,
		logger:      logger.Named("broker"),
	}
}

// RelayChannel is the Pub/Sub channel a node with the given queue name
// listens on.
func (b *Redis) RelayChannel(queueName string) string {
	return b.relayPrefix + queueName
}

// Publish sends body to channel. Persistent publishes are pushed onto the
// list named channel; the rest are published on the node's relay channel.
func (b *Redis) Publish(ctx context.Context, channel string, body []byte, opts domain.PublishOptions) error {
	if opts.Persistent {
		if err := b.client.LPush(ctx, channel, body).Err(); err != nil {
			return fmt.Errorf("failed to enqueue on %s: %w", channel, err)
		}
		return nil
	}

	receivers, err := b.client.Publish(ctx, b.RelayChannel(channel), body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	if receivers == 0 {
		b.logger.Debug("relay published with no subscriber", zap.String("queue", channel))
	}
	return nil
}
