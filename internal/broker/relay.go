// internal/broker/relay.go
package broker

import (
	"context"
	"fmt"

	domain "delivery-service/internal/domain/delivery"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RelayReceiver hands a relayed envelope to a locally held socket.
type RelayReceiver interface {
	DeliverRelayed(ctx context.Context, env *domain.Envelope) bool
}

// RelaySubscriber consumes the relay channel of this node.
type RelaySubscriber struct {
	client   *redis.Client
	channel  string
	receiver RelayReceiver
	logger   *zap.Logger
}

func NewRelaySubscriber(client *redis.Client, channel string, receiver RelayReceiver, logger *zap.Logger) *RelaySubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelaySubscriber{
		client:   client,
		channel:  channel,
		receiver: receiver,
		logger:   logger.Named("relay").With(zap.String("channel", channel)),
	}
}

// Run blocks until ctx is cancelled or the subscription breaks.
func (s *RelaySubscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("relay subscriber started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("relay subscriber stopped")
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay channel %s closed", s.channel)
			}
			s.handle(ctx, []byte(m.Payload))
		}
	}
}

func (s *RelaySubscriber) handle(ctx context.Context, payload []byte) bool {
	env, err := domain.ParseEnvelope(payload)
	if err != nil {
		s.logger.Warn("dropping malformed relay envelope", zap.Error(err))
		return false
	}
	return s.receiver.DeliverRelayed(ctx, env)
}
