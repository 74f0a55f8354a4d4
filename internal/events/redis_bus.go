package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"workforce-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus carries deliveries between processes over per-user pub/sub
// channels. Every process subscribes to all user channels and hands what it
// receives to its local hub, which drops users it holds no connection for.
type RedisBus struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisBus(client *redis.Client, log *logger.Logger) *RedisBus {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisBus{client: client, log: log.Named("redis_bus")}
}

func (b *RedisBus) Publish(ctx context.Context, d Delivery) error {
	data, err := json.Marshal(d.Envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}
	if err := b.client.Publish(ctx, UserChannel(d.UserID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", UserChannel(d.UserID), err)
	}
	return nil
}

// Subscribe blocks until ctx is cancelled or the subscription fails.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(d Delivery)) error {
	sub := b.client.PSubscribe(ctx, ChannelPatternUser)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", ChannelPatternUser, err)
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		userID, ok := UserIDFromChannel(msg.Channel)
		if !ok {
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.WarnCtx(ctx, "dropping malformed delivery", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		handler(Delivery{UserID: userID, Envelope: env})
	}
}
