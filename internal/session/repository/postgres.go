package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"xend-auth/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, access_token_hash, refresh_token_hash, expires_at, refresh_expires_at,
	is_active, created_at, updated_at`

type sessionRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	AccessTokenHash  string    `db:"access_token_hash"`
	RefreshTokenHash string    `db:"refresh_token_hash"`
	ExpiresAt        time.Time `db:"expires_at"`
	RefreshExpiresAt time.Time `db:"refresh_expires_at"`
	IsActive         bool      `db:"is_active"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO user_sessions (`+sessionColumns+`)
		VALUES (:id, :user_id, :access_token_hash, :refresh_token_hash, :expires_at, :refresh_expires_at,
			:is_active, :created_at, :updated_at)`, sessionRow(*s))
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, column, hash string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM user_sessions WHERE `+column+` = $1`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s := domain.Session(row)
	return &s, nil
}

// GetByAccessTokenHash returns the session whose current access digest is hash, or nil if not found.
func (r *PostgresRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getOne(ctx, "access_token_hash", hash)
}

// GetByRefreshTokenHash returns the session whose current refresh digest is hash, or nil if not found.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getOne(ctx, "refresh_token_hash", hash)
}

// Rotate overwrites the token pair in one conditional UPDATE. Concurrent rotations of the
// same refresh token race on the WHERE clause; exactly one sees a row affected.
func (r *PostgresRepository) Rotate(ctx context.Context, rot Rotation) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET access_token_hash = $3, refresh_token_hash = $4, expires_at = $5, refresh_expires_at = $6, updated_at = $7
		WHERE id = $1 AND refresh_token_hash = $2 AND is_active AND refresh_expires_at > $7`,
		rot.SessionID, rot.OldRefreshHash, rot.AccessHash, rot.RefreshHash, rot.ExpiresAt, rot.RefreshExpiresAt, rot.Now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeByTokenHash sets is_active=false on the session holding hash as either token.
func (r *PostgresRepository) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) ([]Revoked, error) {
	var out []Revoked
	err := r.db.SelectContext(ctx, &out, `
		UPDATE user_sessions SET is_active = FALSE, updated_at = $2
		WHERE (access_token_hash = $1 OR refresh_token_hash = $1) AND is_active
		RETURNING id, user_id`, hash, at)
	if err != nil {
		return nil, err
	}
	return out, nil
}
