package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscription delivers the names of expired keys until it is closed. Keys is closed when
// the underlying connection is gone for good.
type Subscription interface {
	Keys() <-chan string
	Close() error
}

// ExpirySource opens subscriptions to key-expiry notifications.
type ExpirySource interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// RedisExpirySource subscribes to __keyevent@<db>__:expired on the client's database.
type RedisExpirySource struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisExpirySource returns an ExpirySource for client.
func NewRedisExpirySource(client *redis.Client, log *zap.Logger) *RedisExpirySource {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisExpirySource{client: client, log: log}
}

// Channel is the keyevent channel carrying expirations for the client's database.
func (s *RedisExpirySource) Channel() string {
	return fmt.Sprintf("__keyevent@%d__:expired", s.client.Options().DB)
}

// EnsureNotifications enables expired-key notifications on the server.
func (s *RedisExpirySource) EnsureNotifications(ctx context.Context) error {
	return s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// KeepNotifications re-applies EnsureNotifications every interval until ctx is done.
// Redis drops runtime CONFIG on restart while the pub/sub connection resubscribes on its
// own. Failures are logged once until a call succeeds again.
func (s *RedisExpirySource) KeepNotifications(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := s.EnsureNotifications(ctx)
		switch {
		case err != nil && !failing && ctx.Err() == nil:
			s.log.Warn("presence: could not re-apply keyspace notifications", zap.Error(err))
			failing = true
		case err == nil && failing:
			s.log.Info("presence: keyspace notifications re-applied")
			failing = false
		}
	}
}

// Subscribe enables expired-key notifications (best-effort: managed Redis often forbids
// CONFIG) and subscribes to the keyevent channel.
func (s *RedisExpirySource) Subscribe(ctx context.Context) (Subscription, error) {
	if err := s.EnsureNotifications(ctx); err != nil {
		s.log.Warn("presence: could not enable keyspace notifications; relying on server config", zap.Error(err))
	}
	ps := s.client.Subscribe(ctx, s.Channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.Channel(), err)
	}
	sub := &redisSubscription{ps: ps, keys: make(chan string), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	keys      chan string
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.keys)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.keys <- msg.Payload:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Keys() <-chan string { return s.keys }

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
