package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, expired or from another issuer.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTokenType is returned when a well-formed token of the other kind is presented
	// (a refresh token where an access token is expected, or vice versa).
	ErrInvalidTokenType = errors.New("invalid token type")
)

// TokenType is the discriminant carried in the "type" claim.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Subject is the identity a token pair is minted for.
type Subject struct {
	ID    string
	Email string
	Role  string
}

// Claims is the JWT body for both token kinds. Email and Role are only set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"id"`
	Type   TokenType `json:"type"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role,omitempty"`
}

// TokenPair is the result of IssuePair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// KeyConfig is the secret and HMAC algorithm for one token kind.
type KeyConfig struct {
	Secret []byte
	Alg    string // HS256, HS384 or HS512
}

// Issuer issues and verifies HMAC-signed access and refresh tokens. Access and refresh
// tokens use independent secrets so one leaked secret cannot forge the other kind.
type Issuer struct {
	access     KeyConfig
	refresh    KeyConfig
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer. Secrets must be non-empty and distinct.
func NewIssuer(access, refresh KeyConfig, issuer string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(access.Secret) == 0 || len(refresh.Secret) == 0 {
		return nil, ErrInvalidSecret
	}
	if string(access.Secret) == string(refresh.Secret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if signingMethod(access.Alg) == nil || signingMethod(refresh.Alg) == nil {
		return nil, errors.New("unsupported signing algorithm")
	}
	return &Issuer{
		access:     access,
		refresh:    refresh,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssuePair mints an access token {id,email,role,type=access} and a refresh token {id,type=refresh}.
func (i *Issuer) IssuePair(sub Subject) (TokenPair, error) {
	now := i.now().UTC()
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)

	access, err := i.sign(i.access, Claims{
		RegisteredClaims: i.registered(sub.ID, now, accessExp),
		UserID:           sub.ID,
		Type:             TokenTypeAccess,
		Email:            sub.Email,
		Role:             sub.Role,
	})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(i.refresh, Claims{
		RegisteredClaims: i.registered(sub.ID, now, refreshExp),
		UserID:           sub.ID,
		Type:             TokenTypeRefresh,
	})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	// Errors from the random source are practically impossible; an empty jti still yields a valid token.
	jti, _ := generateJTI()
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (i *Issuer) sign(key KeyConfig, claims Claims) (string, error) {
	t := jwt.NewWithClaims(signingMethod(key.Alg), claims)
	return t.SignedString(key.Secret)
}

// VerifyAccess verifies signature, expiry, issuer and type=access.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return i.verify(token, i.access, TokenTypeAccess)
}

// VerifyRefresh verifies signature, expiry, issuer and type=refresh.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verify(token, i.refresh, TokenTypeRefresh)
}

func (i *Issuer) verify(tokenString string, key KeyConfig, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key.Secret, nil
	},
		jwt.WithValidMethods([]string{key.Alg}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		// A token of the other kind fails the signature check here because the secrets differ.
		// Classify it without trusting it.
		if peek, perr := Decode(tokenString); perr == nil && peek.Type != "" && peek.Type != want {
			return nil, ErrInvalidTokenType
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode parses a token without verifying its signature or expiry. The result is for
// diagnostics and error classification only and must never gate an authorization decision.
func Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func signingMethod(alg string) jwt.SigningMethod {
	switch alg {
	case "HS256":
		return jwt.SigningMethodHS256
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return nil
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
