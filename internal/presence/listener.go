package presence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"xend-auth/backend/internal/telemetry"
	telemetrydomain "xend-auth/backend/internal/telemetry/domain"
)

var errSubscriptionClosed = errors.New("expiry subscription closed")

// offlineWriteTimeout bounds the store write for one expiry event.
const offlineWriteTimeout = 5 * time.Second

// ListenerOptions tunes the reconnect backoff. Zero values use the defaults.
type ListenerOptions struct {
	Keys       Keys
	MinBackoff time.Duration // default 500ms
	MaxBackoff time.Duration // default 30s
}

// Listener marks identities offline when their presence marker expires. Run one per process.
type Listener struct {
	source     ExpirySource
	identities ActivityWriter
	keys       Keys
	events     telemetry.EventEmitter
	log        *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	now        func() time.Time
}

// NewListener returns a Listener consuming source. events may be nil.
func NewListener(source ExpirySource, identities ActivityWriter, events telemetry.EventEmitter, log *zap.Logger, opts ListenerOptions) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Listener{
		source:     source,
		identities: identities,
		keys:       opts.Keys,
		events:     events,
		log:        log,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		now:        time.Now,
	}
}

// Run consumes expiry notifications until ctx is cancelled, resubscribing with exponential
// backoff whenever the subscription cannot be opened or drops. It returns nil on cancellation.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minBackoff
	b.MaxInterval = l.maxBackoff
	b.Reset()

	for {
		err := l.listen(ctx, b)
		if ctx.Err() != nil {
			return nil
		}
		wait := b.NextBackOff()
		l.log.Warn("presence: expiry listener disconnected; resubscribing",
			zap.Error(err), zap.Duration("retry_in", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (l *Listener) listen(ctx context.Context, b backoff.BackOff) error {
	sub, err := l.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	b.Reset()
	l.log.Info("presence: expiry listener subscribed")

	keys := sub.Keys()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-keys:
			if !ok {
				return errSubscriptionClosed
			}
			l.handle(ctx, key)
		}
	}
}

// handle marks the identity behind an expired marker offline. Failures are logged and not
// retried; the next heartbeat reconciles the flag.
func (l *Listener) handle(ctx context.Context, key string) {
	userID, ok := l.keys.UserID(key)
	if !ok {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, offlineWriteTimeout)
	defer cancel()
	if err := l.identities.SetActive(writeCtx, userID, false, l.now().UTC()); err != nil {
		l.log.Error("presence: mark offline failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	ev := telemetrydomain.NewEvent(telemetrydomain.EventPresenceOffline, "presence", userID, "")
	ev.Metadata = map[string]string{"reason": "ttl"}
	telemetry.EmitAsync(l.events, ev)
}
