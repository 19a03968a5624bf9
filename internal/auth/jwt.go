// Package auth provides JWT issuance and validation for the advisor API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/pkg/config"
)

// minSecretLen is the minimum HMAC secret length. Shorter secrets make
// HS256 tokens practical to brute-force offline.
const minSecretLen = 32

// accessTokenType is the token_type claim stamped on issued tokens.
const accessTokenType = "access"

// Claims are the JWT claims carried by advisor API tokens.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType distinguishes access tokens from anything else that may
	// be signed with the same secret in the future.
	TokenType string `json:"token_type"`
}

// JWTManager issues and validates HMAC-signed bearer tokens.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	leeway    time.Duration
}

// NewJWTManager creates a JWT manager from the auth configuration.
func NewJWTManager(cfg *config.AuthConfig) (*JWTManager, error) {
	if len(cfg.JWTSecret) < minSecretLen {
		return nil, models.ErrJWTSecretTooShort
	}
	return &JWTManager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		accessTTL: cfg.AccessTokenTTL,
		leeway:    cfg.ClockSkewLeeway,
	}, nil
}

// GenerateAccessToken issues a short-lived access token for the subject.
func (m *JWTManager) GenerateAccessToken(subject string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.accessTTL)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		TokenType: accessTokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses and verifies a bearer token. Expired,
// malformed, or foreign-issued tokens all map to ErrTokenInvalid; callers
// only need to distinguish valid from not.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithLeeway(m.leeway))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != accessTokenType {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// AccessTokenTTL reports the configured token lifetime.
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.accessTTL
}
