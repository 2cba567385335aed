package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/browsepilot-org/browsepilot-backend/internal/logger"
)

// hubEnvelope is the wire form of a chat lifecycle broadcast between
// nodes. Only the channel name and the trimmed ChatEvent travel over
// Redis; transcripts never do.
type hubEnvelope struct {
	Channel string    `json:"channel"`
	Event   ChatEvent `json:"event"`
}

// RedisPubSub fans chat lifecycle events out to every node so clients
// connected elsewhere still see creates, renames and deletes.
type RedisPubSub struct {
	log         *logger.Logger
	client      *redis.Client
	channel     string
	cancelFunc  context.CancelFunc
	mu          sync.Mutex
}

func NewRedisPubSub(log *logger.Logger, address, password, channel string) (*RedisPubSub, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisPubSub{
		log:     log.With("component", "RedisPubSub"),
		client:  rdb,
		channel: channel,
	}, nil
}

// StartSubscriber begins relaying chat events published by other nodes
// into the local hub. Messages that fail to decode are dropped; one bad
// producer must not tear down the relay.
func (rp *RedisPubSub) StartSubscriber(hub *Hub) error {
	ctx, cancel := context.WithCancel(context.Background())
	rp.cancelFunc = cancel

	pubsub := rp.client.Subscribe(ctx, rp.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}
	rp.log.Info("Relaying chat events", "channel", rp.channel)

	go rp.relay(ctx, hub, pubsub)
	return nil
}

func (rp *RedisPubSub) relay(ctx context.Context, hub *Hub, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			rp.log.Debug("Relay context done, stopping")
			return
		case raw, ok := <-ch:
			if !ok {
				rp.log.Debug("PubSub channel closed, stopping relay")
				return
			}
			var envelope hubEnvelope
			if err := json.Unmarshal([]byte(raw.Payload), &envelope); err != nil {
				rp.log.Warn("Dropping undecodable chat event", "error", err)
				continue
			}
			hub.localBroadcast(Message{Channel: envelope.Channel, Event: envelope.Event})
		}
	}
}

// Publish sends a chat event to the other nodes. Local delivery is the
// hub's job; this only covers the cross-node leg.
func (rp *RedisPubSub) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(hubEnvelope{Channel: msg.Channel, Event: msg.Event})
	if err != nil {
		rp.log.Warn("failed to encode chat event for redis", "error", err)
		return err
	}
	return rp.client.Publish(ctx, rp.channel, raw).Err()
}

func (rp *RedisPubSub) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.cancelFunc != nil {
		rp.cancelFunc()
		rp.cancelFunc = nil
	}
}
