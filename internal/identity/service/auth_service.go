package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xend-auth/backend/internal/apperr"
	"xend-auth/backend/internal/config"
	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/identity/repository"
	"xend-auth/backend/internal/platform/validate"
	"xend-auth/backend/internal/security"
	sessionservice "xend-auth/backend/internal/session/service"
	"xend-auth/backend/internal/telemetry"
	telemetrydomain "xend-auth/backend/internal/telemetry/domain"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgInternal           = "Internal server error"
	msgEmailTaken         = "User already exists with this email"
	msgPhoneTaken         = "Phone number already in use"
	msgUserNotFound       = "User not found"
)

// IdentityRepo is the identity repository needed by the auth service.
type IdentityRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
	GetByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdateProfile(ctx context.Context, id string, p repository.ProfileUpdate, at time.Time) (*domain.Identity, error)
}

// SessionIssuer mints a token pair and records its session.
type SessionIssuer interface {
	Issue(ctx context.Context, i *domain.Identity) (*sessionservice.Issued, error)
}

// Config selects the password-login policy.
type Config struct {
	// LoginIdentifier is config.LoginIdentifierEmail or config.LoginIdentifierPhone.
	LoginIdentifier string
	// AutoProvisionOnLogin creates an incomplete identity when password login finds no account.
	AutoProvisionOnLogin bool
}

// AuthResult is returned by every login path. The hints drive client onboarding.
type AuthResult struct {
	User                  domain.PublicIdentity `json:"user"`
	AccessToken           string                `json:"accessToken"`
	RefreshToken          string                `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time             `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time             `json:"refreshTokenExpiresAt"`
	Exists                bool                  `json:"exists"`
	NeedsName             bool                  `json:"needsName"`
	NeedsPhone            bool                  `json:"needsPhone"`
	IsProfileComplete     bool                  `json:"isProfileComplete"`
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProviderLoginInput is the payload of LoginProvider. Email and names are seed data for a new identity.
type ProviderLoginInput struct {
	Provider   string
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
}

// ProfileInput is a partial profile update. Empty fields keep their stored value.
type ProfileInput struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// AuthService implements register, password login, provider login and profile completion.
type AuthService struct {
	repo     IdentityRepo
	sessions SessionIssuer
	hasher   *security.Hasher
	events   telemetry.EventEmitter
	cfg      Config
	check    *validate.Validator
	log      *zap.Logger
}

// NewAuthService returns an AuthService with the given dependencies. events may be nil.
func NewAuthService(repo IdentityRepo, sessions SessionIssuer, hasher *security.Hasher, events telemetry.EventEmitter, cfg Config, log *zap.Logger) *AuthService {
	if cfg.LoginIdentifier == "" {
		cfg.LoginIdentifier = config.LoginIdentifierEmail
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, sessions: sessions, hasher: hasher, events: events, cfg: cfg, check: validate.New(), log: log}
}

// LoginIdentifier reports which natural key password login uses: email or phone.
func (s *AuthService) LoginIdentifier() string {
	return s.cfg.LoginIdentifier
}

// Register creates a complete, password-based identity and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if email == "" || in.Password == "" || first == "" || last == "" {
		return nil, apperr.Validation("All fields are required")
	}
	if err := security.CheckPolicy(in.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.dependency("lookup identity by email", err)
	}
	if existing != nil {
		return nil, apperr.Conflict(msgEmailTaken)
	}
	hashed, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	i := &domain.Identity{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hashed,
		FirstName:         first,
		LastName:          last,
		Role:              domain.RoleUser,
		IsProfileComplete: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.create(ctx, i); err != nil {
		return nil, err
	}
	telemetry.EmitAsync(s.events, telemetrydomain.NewEvent(telemetrydomain.EventIdentityRegistered, "identity", i.ID, ""))
	return s.signIn(ctx, i, false)
}

// LoginPassword verifies identifier+password. The identifier is an email or a phone number
// depending on Config.LoginIdentifier. When no account matches and AutoProvisionOnLogin is
// set, the first contact registers a new incomplete identity (Exists=false); otherwise the
// failure does not reveal whether the account exists.
func (s *AuthService) LoginPassword(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if s.cfg.LoginIdentifier == config.LoginIdentifierEmail {
		identifier = normalizeEmail(identifier)
	}
	if identifier == "" || password == "" {
		return nil, apperr.Validation(s.requiredMessage())
	}
	if err := s.checkIdentifier(identifier); err != nil {
		return nil, err
	}

	var (
		i   *domain.Identity
		err error
	)
	if s.cfg.LoginIdentifier == config.LoginIdentifierPhone {
		i, err = s.repo.GetByPhone(ctx, identifier)
	} else {
		i, err = s.repo.GetByEmail(ctx, identifier)
	}
	if err != nil {
		return nil, s.dependency("lookup identity for login", err)
	}

	if i == nil {
		if !s.cfg.AutoProvisionOnLogin {
			return nil, apperr.Authentication(msgInvalidCredentials)
		}
		return s.provisionOnLogin(ctx, identifier, password)
	}

	if i.PasswordHash == "" {
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	if err := s.hasher.Compare(i.PasswordHash, password); err != nil {
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	return s.signIn(ctx, i, true)
}

func (s *AuthService) provisionOnLogin(ctx context.Context, identifier, password string) (*AuthResult, error) {
	hashed, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	i := &domain.Identity{
		ID:           uuid.NewString(),
		PasswordHash: hashed,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.cfg.LoginIdentifier == config.LoginIdentifierPhone {
		i.PhoneNumber = identifier
	} else {
		i.Email = identifier
	}
	if err := s.create(ctx, i); err != nil {
		return nil, err
	}
	telemetry.EmitAsync(s.events, telemetrydomain.NewEvent(telemetrydomain.EventIdentityProvisioned, "identity.password", i.ID, ""))
	return s.signIn(ctx, i, false)
}

// LoginProvider signs in by third-party provider id, creating a profile-incomplete identity
// seeded from the provider fields on first contact.
func (s *AuthService) LoginProvider(ctx context.Context, in ProviderLoginInput) (*AuthResult, error) {
	provider, err := domain.ParseProvider(in.Provider)
	if err != nil {
		return nil, apperr.Validation("Unsupported provider")
	}
	providerID := strings.TrimSpace(in.ProviderID)
	if providerID == "" {
		return nil, apperr.Validation("Provider ID is required")
	}

	i, err := s.repo.GetByProviderID(ctx, provider, providerID)
	if err != nil {
		return nil, s.dependency("lookup identity by provider", err)
	}
	if i != nil {
		return s.signIn(ctx, i, true)
	}

	now := time.Now().UTC()
	i = &domain.Identity{
		ID:        uuid.NewString(),
		Email:     normalizeEmail(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	i.SetProviderID(provider, providerID)
	if err := s.create(ctx, i); err != nil {
		// A concurrent first login for the same provider id won; sign in as that identity.
		if errors.Is(err, repository.ErrProviderIDTaken) {
			existing, lerr := s.repo.GetByProviderID(ctx, provider, providerID)
			if lerr != nil {
				return nil, s.dependency("lookup identity by provider", lerr)
			}
			if existing != nil {
				return s.signIn(ctx, existing, true)
			}
		}
		return nil, err
	}
	telemetry.EmitAsync(s.events, telemetrydomain.NewEvent(telemetrydomain.EventIdentityProvisioned, "identity."+string(provider), i.ID, ""))
	return s.signIn(ctx, i, false)
}

// CompleteProfile merges the non-empty fields into the identity and marks the profile
// complete. A phone number held by another identity is a conflict flagged with phoneConflict.
func (s *AuthService) CompleteProfile(ctx context.Context, userID string, in ProfileInput) (*domain.Identity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("User ID is required")
	}
	cur, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, s.dependency("lookup identity by id", err)
	}
	if cur == nil {
		return nil, apperr.NotFound(msgUserNotFound)
	}

	p := repository.ProfileUpdate{FirstName: cur.FirstName, LastName: cur.LastName, PhoneNumber: cur.PhoneNumber}
	if v := strings.TrimSpace(in.FirstName); v != "" {
		p.FirstName = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		p.LastName = v
	}
	if v := strings.TrimSpace(in.PhoneNumber); v != "" {
		p.PhoneNumber = v
	}
	if p.FirstName == "" || p.LastName == "" || p.PhoneNumber == "" {
		return nil, apperr.Validation("First name, last name and phone number are required")
	}

	if p.PhoneNumber != cur.PhoneNumber {
		holder, err := s.repo.GetByPhone(ctx, p.PhoneNumber)
		if err != nil {
			return nil, s.dependency("lookup identity by phone", err)
		}
		if holder != nil && holder.ID != cur.ID {
			return nil, phoneConflict()
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, cur.ID, p, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return nil, phoneConflict()
		}
		return nil, s.dependency("update profile", err)
	}
	if updated == nil {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	return updated, nil
}

// GetUser returns the identity for id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validation("Invalid user ID")
	}
	i, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.dependency("lookup identity by id", err)
	}
	if i == nil {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	return i, nil
}

func (s *AuthService) signIn(ctx context.Context, i *domain.Identity, exists bool) (*AuthResult, error) {
	issued, err := s.sessions.Issue(ctx, i)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:                  i.Public(),
		AccessToken:           issued.AccessToken,
		RefreshToken:          issued.RefreshToken,
		AccessTokenExpiresAt:  issued.AccessExpiresAt,
		RefreshTokenExpiresAt: issued.RefreshExpiresAt,
		Exists:                exists,
		NeedsName:             i.NeedsName(),
		NeedsPhone:            i.NeedsPhone(),
		IsProfileComplete:     i.IsProfileComplete,
	}, nil
}

// create persists i, mapping unique violations to conflicts. The returned *apperr.Error
// wraps the repository sentinel so callers can still match it.
func (s *AuthService) create(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	err := s.repo.Create(ctx, i)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrEmailTaken):
		return &apperr.Error{Kind: apperr.KindConflict, Message: msgEmailTaken, Err: err}
	case errors.Is(err, repository.ErrPhoneTaken):
		return &apperr.Error{Kind: apperr.KindConflict, Message: msgPhoneTaken, Err: err}
	case errors.Is(err, repository.ErrProviderIDTaken):
		return &apperr.Error{Kind: apperr.KindConflict, Message: "Account already linked", Err: err}
	}
	return s.dependency("create identity", err)
}

// hashPassword enforces the length policy. A policy failure aborts the calling operation.
func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := s.hasher.Hash(password)
	if err == nil {
		return hashed, nil
	}
	if errors.Is(err, security.ErrPasswordTooShort) || errors.Is(err, security.ErrPasswordTooLong) ||
		errors.Is(err, security.ErrPasswordTooManyBytes) {
		return "", apperr.Validation(err.Error())
	}
	return "", s.dependency("hash password", err)
}

func (s *AuthService) dependency(op string, err error) error {
	s.log.Error("identity: "+op, zap.Error(err))
	return apperr.Dependency(msgInternal, err)
}

// checkIdentifier rejects an identifier that is not of the configured kind, so a
// provisioned identity never stores a phone number as its email or vice versa.
func (s *AuthService) checkIdentifier(identifier string) error {
	field, tag := "email", "email"
	if s.cfg.LoginIdentifier == config.LoginIdentifierPhone {
		field, tag = "phoneNumber", "phone"
	}
	if err := s.check.Var(field, identifier, tag); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func (s *AuthService) requiredMessage() string {
	if s.cfg.LoginIdentifier == config.LoginIdentifierPhone {
		return "Phone number and password are required"
	}
	return "Email and password are required"
}

func phoneConflict() error {
	return apperr.Conflict(msgPhoneTaken).WithData("phoneConflict", true)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
