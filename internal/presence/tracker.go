package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/telemetry"
	telemetrydomain "xend-auth/backend/internal/telemetry/domain"
)

// ActivityWriter durably records the presence flag of an identity. Setting the current
// value again must be a no-op.
type ActivityWriter interface {
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}

// Tracker refreshes presence on authenticated requests.
type Tracker struct {
	store      MarkerStore
	identities ActivityWriter
	ttl        time.Duration
	events     telemetry.EventEmitter
	log        *zap.Logger
	now        func() time.Time
}

// NewTracker returns a Tracker. ttl <= 0 uses DefaultTTL; events may be nil.
func NewTracker(store MarkerStore, identities ActivityWriter, ttl time.Duration, events telemetry.EventEmitter, log *zap.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, identities: identities, ttl: ttl, events: events, log: log, now: time.Now}
}

// Heartbeat refreshes the marker for i and flips the stored flag online when it is off.
// Failures are logged and never returned: presence must not fail the request.
func (t *Tracker) Heartbeat(ctx context.Context, i *domain.Identity) {
	if i == nil || i.ID == "" {
		return
	}
	if err := t.store.Touch(ctx, i.ID, t.ttl); err != nil {
		// Without a marker no expiry will ever arrive, so leave the flag alone.
		t.log.Warn("presence: refresh marker failed", zap.String("user_id", i.ID), zap.Error(err))
		return
	}
	if i.IsActive {
		return
	}
	if err := t.identities.SetActive(ctx, i.ID, true, t.now().UTC()); err != nil {
		t.log.Warn("presence: mark online failed", zap.String("user_id", i.ID), zap.Error(err))
		return
	}
	i.IsActive = true
	telemetry.EmitAsync(t.events, telemetrydomain.NewEvent(telemetrydomain.EventPresenceOnline, "presence", i.ID, ""))
}
