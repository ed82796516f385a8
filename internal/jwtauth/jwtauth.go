// Package jwtauth mints and verifies the stateless session tokens. A token
// carries everything needed to authorize a request; no server-side session
// is consulted. Consequence of that contract: a role change only affects
// tokens minted afterwards, tokens already in flight keep their asserted
// role until expiry.
package jwtauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// Token types. Access and refresh tokens are signed with distinct secrets,
// so a refresh token can never pass access verification even if the type
// claim were forged.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims are the application claims carried by both token types.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Service mints and verifies tokens.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// Config holds token signing settings.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// New creates a token service.
func New(cfg Config) (*Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jwt secrets not configured")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
	}, nil
}

// GenerateAccessToken mints a short-lived access token.
func (s *Service) GenerateAccessToken(ctx context.Context, userID id.UserID, email, role string) (string, error) {
	return s.generate(ctx, userID, email, role, TypeAccess, s.accessSecret, s.accessTTL)
}

// GenerateRefreshToken mints a long-lived refresh token.
func (s *Service) GenerateRefreshToken(ctx context.Context, userID id.UserID, email, role string) (string, error) {
	return s.generate(ctx, userID, email, role, TypeRefresh, s.refreshSecret, s.refreshTTL)
}

func (s *Service) generate(ctx context.Context, userID id.UserID, email, role, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Email:  email,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        hex.EncodeToString(b),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, nil
}

// errUnauthorized is the single failure mode for every verification
// problem. Callers (and attackers) cannot distinguish a bad signature from
// an expired token or a type mismatch.
func errUnauthorized() error {
	return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
}

// Verify parses and validates a token against the secret for expectedType.
// It returns the claims only if the signature, expiry, and type claim all
// check out.
func (s *Service) Verify(tokenString, expectedType string) (*Claims, error) {
	var secret []byte
	switch expectedType {
	case TypeAccess:
		secret = s.accessSecret
	case TypeRefresh:
		secret = s.refreshSecret
	default:
		return nil, errUnauthorized()
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnauthorized()
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errUnauthorized()
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errUnauthorized()
	}
	if claims.Type != expectedType {
		return nil, errUnauthorized()
	}
	if _, err := id.ParseUserID(claims.UserID); err != nil {
		return nil, errUnauthorized()
	}

	return claims, nil
}
