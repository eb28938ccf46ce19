package telemetry

import (
	"context"
	"errors"

	"xend-auth/backend/internal/telemetry/domain"
)

// EventEmitter emits auth events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
