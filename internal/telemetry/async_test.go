package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"xend-auth/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	done    chan struct{}
}

func newMockEmitter() *mockEventEmitter {
	return &mockEventEmitter{done: make(chan struct{}, 16)}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

func waitEmit(t *testing.T, m *mockEventEmitter) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not happen")
	}
}

func TestEmitAsync_NilArgs(t *testing.T) {
	// Should not panic
	EmitAsync(nil, domain.NewEvent("x", "test", "", ""))

	m := newMockEmitter()
	EmitAsync(m, nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(m.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	m := newMockEmitter()
	EmitAsync(m, domain.NewEvent(domain.EventSessionCreated, "session", "user-1", "sess-1"))
	waitEmit(t, m)

	events := m.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "user-1" || events[0].SessionID != "sess-1" || events[0].Type != domain.EventSessionCreated {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	m := newMockEmitter()
	m.emitErr = errors.New("broker down")
	EmitAsync(m, domain.NewEvent("x", "test", "", ""))
	waitEmit(t, m)
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a, b := newMockEmitter(), newMockEmitter()
	b.emitErr = errors.New("b failed")
	err := Multi{a, nil, b}.Emit(context.Background(), domain.NewEvent("x", "test", "", ""))
	if err == nil || err.Error() != "b failed" {
		t.Errorf("Multi err = %v, want b failed", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
