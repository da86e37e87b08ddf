package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMirrorTTL = 90 * time.Second

// RedisMirror stores presence entries in Redis with an expiry, so a crashed
// instance's users fall offline once the TTL lapses instead of lingering.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisMirrorWithClient(client), nil
}

// NewRedisMirrorWithClient wraps an existing Redis client.
func NewRedisMirrorWithClient(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		client: client,
		prefix: "presence:",
		ttl:    defaultMirrorTTL,
	}
}

func (m *RedisMirror) key(userID string) string {
	return m.prefix + userID
}

// Join marks the user online for one TTL window.
func (m *RedisMirror) Join(ctx context.Context, userID string) error {
	if err := m.client.Set(ctx, m.key(userID), "1", m.ttl).Err(); err != nil {
		return fmt.Errorf("presence join: %w", err)
	}
	return nil
}

// Refresh extends the user's presence window.
func (m *RedisMirror) Refresh(ctx context.Context, userID string) error {
	if err := m.client.Set(ctx, m.key(userID), "1", m.ttl).Err(); err != nil {
		return fmt.Errorf("presence refresh: %w", err)
	}
	return nil
}

// Leave drops the user's presence entry.
func (m *RedisMirror) Leave(ctx context.Context, userID string) error {
	if err := m.client.Del(ctx, m.key(userID)).Err(); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	return nil
}

// IsOnline reports whether any instance currently holds the user's channel.
func (m *RedisMirror) IsOnline(ctx context.Context, userID string) (bool, error) {
	count, err := m.client.Exists(ctx, m.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return count > 0, nil
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
