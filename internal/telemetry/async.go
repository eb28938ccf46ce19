package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"xend-auth/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down
// OTel providers and the Kafka writer, so in-flight async emits can complete.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync then returns immediately without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			zap.L().Warn("telemetry: async emit failed", zap.String("event_type", event.Type), zap.Error(err))
		}
	}()
}
