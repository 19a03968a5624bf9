package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/pkg/config"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes, minimum length

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:       testSecret,
		Issuer:          "pgsteward",
		AccessTokenTTL:  15 * time.Minute,
		ClockSkewLeeway: 30 * time.Second,
	}
}

// TestNewJWTManager tests secret length enforcement.
func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		expectError error
		description string
	}{
		{
			name:        "empty secret",
			secret:      "",
			expectError: models.ErrJWTSecretTooShort,
			description: "empty secret must be rejected",
		},
		{
			name:        "31 byte secret",
			secret:      strings.Repeat("x", 31),
			expectError: models.ErrJWTSecretTooShort,
			description: "one byte under the minimum must be rejected",
		},
		{
			name:        "32 byte secret",
			secret:      strings.Repeat("x", 32),
			description: "exactly the minimum length is accepted",
		},
		{
			name:        "long secret",
			secret:      strings.Repeat("x", 64),
			description: "longer secrets are accepted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAuthConfig()
			cfg.JWTSecret = tt.secret

			m, err := NewJWTManager(cfg)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError, tt.description)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err, tt.description)
			assert.NotNil(t, m)
		})
	}
}

// TestJWTManager_RoundTrip tests that an issued token validates and carries
// the expected claims.
func TestJWTManager_RoundTrip(t *testing.T) {
	m, err := NewJWTManager(testAuthConfig())
	require.NoError(t, err)

	token, expiresAt, err := m.GenerateAccessToken("api")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "api", claims.Subject)
	assert.Equal(t, "pgsteward", claims.Issuer)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.ID, "each token should carry a unique jti")
}

// TestJWTManager_Rejections tests that every invalid-token flavor maps to
// ErrTokenInvalid.
func TestJWTManager_Rejections(t *testing.T) {
	m, err := NewJWTManager(testAuthConfig())
	require.NoError(t, err)

	t.Run("malformed token", func(t *testing.T) {
		_, err := m.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		otherCfg := testAuthConfig()
		otherCfg.JWTSecret = strings.Repeat("y", 32)
		other, err := NewJWTManager(otherCfg)
		require.NoError(t, err)

		token, _, err := other.GenerateAccessToken("api")
		require.NoError(t, err)

		_, err = m.ValidateAccessToken(token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		otherCfg := testAuthConfig()
		otherCfg.Issuer = "someone-else"
		other, err := NewJWTManager(otherCfg)
		require.NoError(t, err)

		token, _, err := other.GenerateAccessToken("api")
		require.NoError(t, err)

		_, err = m.ValidateAccessToken(token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		expiredCfg := testAuthConfig()
		expiredCfg.AccessTokenTTL = -time.Hour
		expiredCfg.ClockSkewLeeway = 0
		expired, err := NewJWTManager(expiredCfg)
		require.NoError(t, err)

		token, _, err := expired.GenerateAccessToken("api")
		require.NoError(t, err)

		_, err = expired.ValidateAccessToken(token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})
}

// TestJWTManager_ClockSkewLeeway tests that a token expired by less than the
// configured leeway still validates.
func TestJWTManager_ClockSkewLeeway(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AccessTokenTTL = -10 * time.Second
	cfg.ClockSkewLeeway = time.Minute
	m, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, _, err := m.GenerateAccessToken("api")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err, "expiry within the leeway window should be tolerated")
	assert.Equal(t, "api", claims.Subject)
}

// TestAPIKey tests bcrypt hashing and verification of operator API keys.
func TestAPIKey(t *testing.T) {
	hash, err := HashAPIKey("s3cret-key")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "s3cret-key", "hash must not embed the key")

	assert.NoError(t, VerifyAPIKey(hash, "s3cret-key"))
	assert.ErrorIs(t, VerifyAPIKey(hash, "wrong-key"), models.ErrInvalidAPIKey)
	assert.ErrorIs(t, VerifyAPIKey("not-a-bcrypt-hash", "s3cret-key"), models.ErrInvalidAPIKey)
}

// TestClaimsContext tests the context round-trip used by the auth middleware.
func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok, "empty context carries no claims")

	claims := &Claims{TokenType: "access"}
	ctx := ContextWithClaims(context.Background(), claims)

	got, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)
}
