package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-counsel-backend/internal/config"
)

// ErrNotConfigured is returned when a RedisNotifier is used without a client.
var ErrNotConfigured = errors.New("redis notifier not initialized")

// RedisNotifier publishes events on a Redis channel so that every API
// instance can forward them to the counselors connected to it.
type RedisNotifier struct {
	rdb     *goredis.Client
	channel string
	log     zerolog.Logger
}

// ChannelName returns the pub/sub channel used for counselor events.
func ChannelName(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "counsel"
	}
	return prefix + ":counselor-events"
}

// NewRedisNotifier connects to cfg.Addr and verifies the connection.
func NewRedisNotifier(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*RedisNotifier, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisNotifier{
		rdb:     rdb,
		channel: ChannelName(cfg.ChannelPrefix),
		log:     log.With().Str("component", "notify.redis").Logger(),
	}, nil
}

// Notify publishes e as JSON.
func (n *RedisNotifier) Notify(ctx context.Context, e Event) error {
	if n == nil || n.rdb == nil {
		return ErrNotConfigured
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, raw).Err()
}

// Forward subscribes to the event channel and delivers every message into
// hub until ctx is cancelled. It returns once the subscription is confirmed.
func (n *RedisNotifier) Forward(ctx context.Context, hub *Hub) error {
	if n == nil || n.rdb == nil {
		return ErrNotConfigured
	}
	if hub == nil {
		return fmt.Errorf("hub required")
	}

	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					n.log.Warn().Err(err).Msg("bad counselor event payload")
					continue
				}
				hub.Deliver(e)
			}
		}
	}()
	return nil
}

// Close releases the Redis client.
func (n *RedisNotifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}
