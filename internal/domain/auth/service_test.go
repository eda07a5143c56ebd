package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	jwtService := NewJWTService(DefaultJWTConfig("test-signing-key"))
	return NewService(jwtService, AccountConfig{
		UserID:       "api-user-1",
		Email:        "ops@example.com",
		PasswordHash: hash,
		Roles:        []string{"ledger:read", "ledger:write"},
	})
}

func TestLogin_IssuesValidToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Login(context.Background(), Credentials{
		Email:    "ops@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	user, err := svc.jwtService.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "api-user-1", user.UserID)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.Equal(t, []string{"ledger:read", "ledger:write"}, user.Roles)
	assert.False(t, user.IsAdmin)
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), Credentials{
		Email:    "ops@example.com",
		Password: "wrong",
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
}

func TestLogin_RejectsUnknownEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), Credentials{
		Email:    "nobody@example.com",
		Password: "s3cret",
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
}

func TestValidateToken_RejectsWrongKey(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("key-a"))
	verifier := NewJWTService(DefaultJWTConfig("key-b"))

	token, _, err := issuer.GenerateAccessToken("u1", "a@example.com", nil, false)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("test-signing-key")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("u1", "a@example.com", nil, false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
