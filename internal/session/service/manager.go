package service

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"xend-auth/backend/internal/apperr"
	identitydomain "xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/security"
	"xend-auth/backend/internal/session/domain"
	"xend-auth/backend/internal/session/repository"
	"xend-auth/backend/internal/telemetry"
	telemetrydomain "xend-auth/backend/internal/telemetry/domain"
)

// Failure messages returned to clients.
const (
	msgInvalidRefresh = "Invalid or expired refresh token"
	msgInvalidToken   = "Invalid token"
	msgTokenType      = "Invalid token type"
	msgInternal       = "Internal server error"
)

// IdentityReader is the minimal identity repository needed by the Manager.
type IdentityReader interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// Issued is a minted token pair bound to a session row.
type Issued struct {
	SessionID string
	UserID    string
	security.TokenPair
}

// Manager owns the session lifecycle: issue, validate, rotate and revoke.
type Manager struct {
	repo       repository.Repository
	identities IdentityReader
	tokens     *security.Issuer
	events     telemetry.EventEmitter
	log        *zap.Logger
	now        func() time.Time
}

// NewManager returns a Manager. events may be nil.
func NewManager(repo repository.Repository, identities IdentityReader, tokens *security.Issuer, events telemetry.EventEmitter, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:       repo,
		identities: identities,
		tokens:     tokens,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func subjectOf(i *identitydomain.Identity) security.Subject {
	return security.Subject{ID: i.ID, Email: i.Email, Role: string(i.Role)}
}

// Issue mints a token pair for the identity and records a new active session.
func (m *Manager) Issue(ctx context.Context, i *identitydomain.Identity) (*Issued, error) {
	pair, err := m.tokens.IssuePair(subjectOf(i))
	if err != nil {
		m.log.Error("issue token pair", zap.String("user_id", i.ID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	now := m.now().UTC()
	s := &domain.Session{
		ID:               ulid.Make().String(),
		UserID:           i.ID,
		AccessTokenHash:  security.HashToken(pair.AccessToken),
		RefreshTokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		m.log.Error("create session", zap.String("user_id", i.ID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	telemetry.EmitAsync(m.events, telemetrydomain.NewEvent(telemetrydomain.EventSessionCreated, "session", i.ID, s.ID))
	return &Issued{SessionID: s.ID, UserID: i.ID, TokenPair: pair}, nil
}

// Validate returns the identity behind accessToken when its session is active and the access
// expiry has not passed. Any other outcome is "no session": (nil, nil). Only store failures
// are errors.
func (m *Manager) Validate(ctx context.Context, accessToken string) (*identitydomain.Identity, error) {
	claims, err := m.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, nil
	}
	s, err := m.repo.GetByAccessTokenHash(ctx, security.HashToken(accessToken))
	if err != nil {
		m.log.Error("lookup session by access token", zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	if s == nil || s.UserID != claims.UserID || !s.AccessValid(m.now()) {
		return nil, nil
	}
	i, err := m.identities.GetByID(ctx, s.UserID)
	if err != nil {
		m.log.Error("load session identity", zap.String("user_id", s.UserID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	return i, nil
}

// Rotate exchanges a refresh token for a new pair on the same session row. The old pair stops
// working immediately. A stale, replayed, revoked or expired refresh token, or losing a
// concurrent rotation, is an authentication failure and leaves the row untouched.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (*Issued, error) {
	if refreshToken == "" {
		return nil, apperr.Validation("Refresh token is required")
	}
	claims, err := m.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrInvalidTokenType) {
			return nil, apperr.Authentication(msgTokenType)
		}
		return nil, apperr.Authentication(msgInvalidRefresh)
	}
	oldHash := security.HashToken(refreshToken)
	s, err := m.repo.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		m.log.Error("lookup session by refresh token", zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	now := m.now().UTC()
	if s == nil || s.UserID != claims.UserID || !s.RefreshValid(now) {
		return nil, apperr.Authentication(msgInvalidRefresh)
	}
	i, err := m.identities.GetByID(ctx, s.UserID)
	if err != nil {
		m.log.Error("load session identity", zap.String("user_id", s.UserID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	if i == nil {
		return nil, apperr.Authentication(msgInvalidRefresh)
	}
	pair, err := m.tokens.IssuePair(subjectOf(i))
	if err != nil {
		m.log.Error("issue token pair", zap.String("user_id", i.ID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	ok, err := m.repo.Rotate(ctx, repository.Rotation{
		SessionID:        s.ID,
		OldRefreshHash:   oldHash,
		AccessHash:       security.HashToken(pair.AccessToken),
		RefreshHash:      security.HashToken(pair.RefreshToken),
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Now:              now,
	})
	if err != nil {
		m.log.Error("rotate session", zap.String("session_id", s.ID), zap.Error(err))
		return nil, apperr.Dependency(msgInternal, err)
	}
	if !ok {
		m.log.Info("refresh rejected: session changed concurrently", zap.String("session_id", s.ID))
		return nil, apperr.Authentication(msgInvalidRefresh)
	}
	telemetry.EmitAsync(m.events, telemetrydomain.NewEvent(telemetrydomain.EventSessionRotated, "session", i.ID, s.ID))
	return &Issued{SessionID: s.ID, UserID: i.ID, TokenPair: pair}, nil
}

// Revoke deactivates the session holding token as its current access or refresh token.
// Unknown, stale and already revoked tokens succeed without effect.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	revoked, err := m.repo.RevokeByTokenHash(ctx, security.HashToken(token), m.now().UTC())
	if err != nil {
		m.log.Error("revoke session", zap.Error(err))
		return apperr.Dependency(msgInternal, err)
	}
	// Attribution comes from the stored row, never from the presented token's claims.
	for _, r := range revoked {
		telemetry.EmitAsync(m.events, telemetrydomain.NewEvent(telemetrydomain.EventSessionRevoked, "session", r.UserID, r.SessionID))
	}
	return nil
}

// AuthenticateAccess verifies an access token for the HTTP boundary. Unlike Validate it
// distinguishes a wrong token kind so the caller can report it; a missing session is an
// authentication failure.
func (m *Manager) AuthenticateAccess(ctx context.Context, accessToken string) (*identitydomain.Identity, error) {
	if _, err := m.tokens.VerifyAccess(accessToken); err != nil {
		if errors.Is(err, security.ErrInvalidTokenType) {
			return nil, apperr.Authentication(msgTokenType)
		}
		return nil, apperr.Authentication(msgInvalidToken)
	}
	i, err := m.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, apperr.Authentication("Session expired or revoked")
	}
	return i, nil
}
