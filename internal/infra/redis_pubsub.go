package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"pockettrade.com/internal/constants"
)

// PocketMessage 一条发给 Pocket owner 的推送
type PocketMessage struct {
	Owner   string          `json:"owner"`
	Payload json.RawMessage `json:"payload"`
}

// PublishPocketEvent 发布到 pocket.<owner> 频道，供所有实例的 WebSocket 推送
func PublishPocketEvent(ctx context.Context, rdb redis.Cmdable, owner string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pocket event: %w", err)
	}
	if err := rdb.Publish(ctx, constants.RedisPubSubPocketPrefix+owner, data).Err(); err != nil {
		return fmt.Errorf("failed to publish pocket event: %w", err)
	}
	return nil
}

// StartPocketEventSubscriber starts a goroutine forwarding pocket.* messages to out.
// The returned channel is closed once the goroutine has exited.
func StartPocketEventSubscriber(ctx context.Context, rdb *redis.Client, out chan<- PocketMessage, logger *zap.Logger) (<-chan struct{}, error) {
	// Subscribe to all channels matching pattern
	pubsub := rdb.PSubscribe(ctx, constants.RedisPubSubPocketPrefix+"*")

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to pocket events: %w", err)
	}

	ch := pubsub.Channel()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer pubsub.Close()
		logger.Info("Started Pocket Event Subscriber Loop")
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				// Strip "pocket." prefix to get the owner
				message := PocketMessage{
					Owner:   strings.TrimPrefix(msg.Channel, constants.RedisPubSubPocketPrefix),
					Payload: json.RawMessage(msg.Payload),
				}

				select {
				case out <- message:
				default:
					logger.Warn("Pocket event channel is full, dropping message", zap.String("owner", message.Owner))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}
