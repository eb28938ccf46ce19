package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xend-auth/backend/internal/db"
)

type eventRow struct {
	ID        string         `db:"id"`
	EventType string         `db:"event_type"`
	UserID    sql.NullString `db:"user_id"`
	SessionID sql.NullString `db:"session_id"`
	Source    string         `db:"source"`
	Metadata  []byte         `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an auth event repository backed by the auth_events table.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, rec *Record) error {
	meta := []byte("{}")
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = b
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auth_events (id, event_type, user_id, session_id, source, metadata, created_at)
		VALUES (:id, :event_type, :user_id, :session_id, :source, :metadata, :created_at)
		ON CONFLICT (id) DO NOTHING`, eventRow{
		ID:        rec.ID,
		EventType: rec.Type,
		UserID:    sql.NullString{String: rec.UserID, Valid: rec.UserID != ""},
		SessionID: sql.NullString{String: rec.SessionID, Valid: rec.SessionID != ""},
		Source:    rec.Source,
		Metadata:  meta,
		CreatedAt: rec.CreatedAt,
	})
	if db.DataError(err) {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, event_type, user_id, session_id, source, metadata, created_at
		FROM auth_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func rowToRecord(row *eventRow) (*Record, error) {
	rec := &Record{ID: row.ID}
	rec.Type = row.EventType
	rec.UserID = row.UserID.String
	rec.SessionID = row.SessionID.String
	rec.Source = row.Source
	rec.CreatedAt = row.CreatedAt
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", row.ID, err)
		}
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
	}
	return rec, nil
}
