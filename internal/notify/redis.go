package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
)

// DefaultChannel carries terminal outcomes from workers to API instances
const DefaultChannel = "estimate-events"

// RedisPublisher publishes notifications on a redis pub/sub channel
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe relays notifications from the channel to next until ctx is done.
// It returns once the subscription is confirmed by redis.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, next Notifier, logger *zap.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n model.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					logger.Warn("dropping malformed notification", zap.Error(err))
					continue
				}
				if err := next.Notify(ctx, n); err != nil {
					logger.Warn("notification relay failed",
						zap.String("estimate_id", n.EstimateID.String()),
						zap.Error(err),
					)
				}
			}
		}
	}()

	return nil
}
