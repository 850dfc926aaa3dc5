package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jayalms/lms/core"
)

// RedisBroker fans change events out through a Redis pub/sub channel, so that every API instance sees every write.
// Events received from Redis are dispatched to local subscribers through a Hub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  core.Logger

	pubsub *redis.PubSub
	done   chan struct{}
}

var _ core.ChangeBroker = (*RedisBroker)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Realtime.RedisAddress,
		Password: conf.Realtime.RedisPassword,
	})
}

// NewRedisBroker subscribes to the configured channel and relays its events until Close.
func NewRedisBroker(ctx context.Context, client *redis.Client, conf *core.Config, logger core.Logger) (*RedisBroker, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}

	b := &RedisBroker{
		client:  client,
		channel: conf.Realtime.RedisChannel,
		hub:     NewHub(logger),
		logger:  logger,
		done:    make(chan struct{}),
	}
	b.pubsub = client.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		return nil, errors.Wrap(err, "subscribing to redis channel")
	}

	go b.relay()
	return b, nil
}

func (b *RedisBroker) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		var ev core.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.logger.Warn("decoding change event", err, map[string]interface{}{"payload": msg.Payload})
			continue
		}
		b.hub.dispatch(ev)
	}
}

func (b *RedisBroker) Publish(ctx context.Context, ev core.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding change event")
	}
	return errors.Wrap(b.client.Publish(ctx, b.channel, data).Err(), "publishing change event")
}

func (b *RedisBroker) Subscribe(ctx context.Context, tables ...string) (<-chan core.ChangeEvent, func()) {
	return b.hub.Subscribe(ctx, tables...)
}

// Close stops relaying events. The redis client is left open.
func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	return err
}
