// Package audit persists the auth event stream published to Kafka.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"xend-auth/backend/internal/audit/repository"
	"xend-auth/backend/internal/telemetry/domain"
)

// MessageReader is the consumer-group subset of *kafka.Reader used by Sink.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Sink copies auth events from Kafka into the audit repository. Offsets are committed only
// after the event is stored; undecodable and rejected messages are logged and skipped.
type Sink struct {
	reader MessageReader
	repo   repository.Repository
	log    *zap.Logger
	retry  func() backoff.BackOff
}

// NewSink returns a Sink.
func NewSink(reader MessageReader, repo repository.Repository, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{
		reader: reader,
		repo:   repo,
		log:    log,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// Run consumes until ctx is cancelled and then returns nil.
func (s *Sink) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("audit: kafka fetch failed", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}
		if err := s.store(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("audit: giving up on message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.log.Warn("audit: commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// store saves the event in msg, retrying store failures with backoff until ctx ends.
func (s *Sink) store(ctx context.Context, msg kafka.Message) error {
	rec, err := Decode(msg)
	if err != nil {
		s.log.Warn("audit: skipping undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	b := s.retry()
	for {
		err := s.repo.Save(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrRejected) {
			s.log.Warn("audit: skipping rejected event", zap.String("event_id", rec.ID), zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		s.log.Warn("audit: save failed; retrying", zap.String("event_id", rec.ID), zap.Duration("retry_in", wait), zap.Error(err))
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// Decode turns a Kafka message into a record. The id derives from the partition offset and
// event time so that redelivery of the same message maps to the same row.
func Decode(msg kafka.Message) (*repository.Record, error) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, errors.New("event has no type")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = msg.Time
	}
	return &repository.Record{ID: recordID(msg, ev.CreatedAt), Event: ev}, nil
}

func recordID(msg kafka.Message, at time.Time) string {
	var entropy [10]byte
	// partition (2 bytes) + offset (8 bytes) fill the ULID entropy deterministically.
	entropy[0] = byte(msg.Partition >> 8)
	entropy[1] = byte(msg.Partition)
	for i := 0; i < 8; i++ {
		entropy[2+i] = byte(msg.Offset >> (56 - 8*i))
	}
	var id ulid.ULID
	_ = id.SetTime(ulid.Timestamp(at))
	_ = id.SetEntropy(entropy[:])
	return id.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
