package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xend-auth/backend/internal/db"
	"xend-auth/backend/internal/identity/domain"
)

const identityColumns = `id, email, phone_number, apple_id, google_id, password, first_name, last_name,
	role, is_profile_complete, is_active, last_activity, created_at, updated_at`

type userRow struct {
	ID                string         `db:"id"`
	Email             sql.NullString `db:"email"`
	PhoneNumber       sql.NullString `db:"phone_number"`
	AppleID           sql.NullString `db:"apple_id"`
	GoogleID          sql.NullString `db:"google_id"`
	Password          sql.NullString `db:"password"`
	FirstName         string         `db:"first_name"`
	LastName          string         `db:"last_name"`
	Role              string         `db:"role"`
	IsProfileComplete bool           `db:"is_profile_complete"`
	IsActive          bool           `db:"is_active"`
	LastActivity      sql.NullTime   `db:"last_activity"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*domain.Identity, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+identityColumns+` FROM users WHERE `+where+` = $1`, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail returns the identity with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.getOne(ctx, "email", email)
}

// GetByPhone returns the identity with the given phone number, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	return r.getOne(ctx, "phone_number", phone)
}

// GetByProviderID returns the identity linked to providerID at provider, or nil if not found.
func (r *PostgresRepository) GetByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error) {
	col := provider.Column()
	if col == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
	return r.getOne(ctx, col, providerID)
}

// Create persists the identity. The identity must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	row := domainToRow(i)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (`+identityColumns+`)
		VALUES (:id, :email, :phone_number, :apple_id, :google_id, :password, :first_name, :last_name,
			:role, :is_profile_complete, :is_active, :last_activity, :created_at, :updated_at)`, row)
	return mapUniqueViolation(err)
}

// UpdateProfile writes first/last name and phone and sets is_profile_complete.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p ProfileUpdate, at time.Time) (*domain.Identity, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE users
		SET first_name = $2, last_name = $3, phone_number = $4, is_profile_complete = TRUE, updated_at = $5
		WHERE id = $1
		RETURNING `+identityColumns,
		id, p.FirstName, p.LastName, nullString(p.PhoneNumber), at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapUniqueViolation(err)
	}
	return rowToDomain(&row), nil
}

// SetActive sets is_active and last_activity. Rows already in the requested state are left untouched.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = $2, last_activity = $3, updated_at = $3
		WHERE id = $1 AND is_active <> $2`, id, active, at)
	return err
}

func mapUniqueViolation(err error) error {
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "users_email_key":
		return ErrEmailTaken
	case "users_phone_number_key":
		return ErrPhoneTaken
	case "users_apple_id_key", "users_google_id_key":
		return ErrProviderIDTaken
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func domainToRow(i *domain.Identity) *userRow {
	row := &userRow{
		ID:                i.ID,
		Email:             nullString(i.Email),
		PhoneNumber:       nullString(i.PhoneNumber),
		AppleID:           nullString(i.AppleID),
		GoogleID:          nullString(i.GoogleID),
		Password:          nullString(i.PasswordHash),
		FirstName:         i.FirstName,
		LastName:          i.LastName,
		Role:              string(i.Role),
		IsProfileComplete: i.IsProfileComplete,
		IsActive:          i.IsActive,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
	if i.LastActivity != nil {
		row.LastActivity = sql.NullTime{Time: *i.LastActivity, Valid: true}
	}
	return row
}

func rowToDomain(r *userRow) *domain.Identity {
	i := &domain.Identity{
		ID:                r.ID,
		Email:             r.Email.String,
		PhoneNumber:       r.PhoneNumber.String,
		AppleID:           r.AppleID.String,
		GoogleID:          r.GoogleID.String,
		PasswordHash:      r.Password.String,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Role:              domain.Role(r.Role),
		IsProfileComplete: r.IsProfileComplete,
		IsActive:          r.IsActive,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.LastActivity.Valid {
		t := r.LastActivity.Time
		i.LastActivity = &t
	}
	return i
}
