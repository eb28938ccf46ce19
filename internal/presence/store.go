// Package presence keeps the durable is_active flag of identities in line with recent
// activity. Each authenticated request refreshes a TTL-bound marker in Redis; when a marker
// expires, Redis publishes a keyevent notification and the Listener marks the identity offline.
//
// The marker and the users row are reconciled asynchronously: for up to one TTL the two may
// disagree.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a user stays online after their last authenticated request.
const DefaultTTL = 300 * time.Second

// DefaultKeyPrefix namespaces presence markers.
const DefaultKeyPrefix = "presence:"

const markerValue = "online"

// MarkerStore holds the ephemeral per-identity liveness markers.
type MarkerStore interface {
	// Touch sets or refreshes the marker for userID with the given TTL.
	Touch(ctx context.Context, userID string, ttl time.Duration) error
}

// Keys maps identity ids to marker keys and back.
type Keys struct {
	Prefix string
}

// Marker returns the marker key for userID.
func (k Keys) Marker(userID string) string {
	return k.prefix() + userID
}

// UserID extracts the identity id from a marker key. Keys outside the namespace report false.
func (k Keys) UserID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.prefix())
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (k Keys) prefix() string {
	if k.Prefix == "" {
		return DefaultKeyPrefix
	}
	return k.Prefix
}

// RedisStore is a MarkerStore backed by Redis SET with expiry.
type RedisStore struct {
	client *redis.Client
	keys   Keys
}

// NewRedisStore returns a RedisStore writing markers under keys.
func NewRedisStore(client *redis.Client, keys Keys) *RedisStore {
	return &RedisStore{client: client, keys: keys}
}

func (s *RedisStore) Touch(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.client.Set(ctx, s.keys.Marker(userID), markerValue, ttl).Err()
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
