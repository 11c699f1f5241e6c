// Package statusfeed mirrors recording status snapshots to Redis: every
// snapshot is PUBLISHed on a channel and the latest one is kept under
// "<channel>:last" for late readers.
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/protocol"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

const notifyTimeout = 2 * time.Second

// Client is the subset of *redis.Client the feed uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type Publisher struct {
	client  Client
	channel string
	logger  logger.Logger
}

func NewPublisher(client Client, channel string, log logger.Logger) *Publisher {
	return &Publisher{client: client, channel: channel, logger: log}
}

// LastKey is where the latest snapshot is stored.
func (p *Publisher) LastKey() string { return p.channel + ":last" }

// Publish stores st as the latest snapshot and publishes it.
func (p *Publisher) Publish(ctx context.Context, st recorder.Status) error {
	payload, err := json.Marshal(protocol.NewStatus(st))
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := p.client.Set(ctx, p.LastKey(), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store last status: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// Notify is the supervisor change hook: best effort, failures are logged.
func (p *Publisher) Notify(st recorder.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := p.Publish(ctx, st); err != nil {
		p.logger.Warn("status feed publish failed",
			logger.String("channel", p.channel),
			logger.String("state", st.State.String()),
			logger.Error(err))
	}
}

// Latest returns the last stored snapshot; ok is false when none exists.
func (p *Publisher) Latest(ctx context.Context) (st recorder.Status, ok bool, err error) {
	raw, err := p.client.Get(ctx, p.LastKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return recorder.Status{}, false, nil
		}
		return recorder.Status{}, false, fmt.Errorf("failed to read last status: %w", err)
	}
	var msg protocol.StatusMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return recorder.Status{}, false, fmt.Errorf("failed to decode last status: %w", err)
	}
	return msg.Status, true, nil
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
