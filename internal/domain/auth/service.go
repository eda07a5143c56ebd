package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kardex/internal/core/apperror"
	"kardex/pkg/logger"
)

// Credentials are the login credentials.
type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AccountConfig describes a statically configured API account.
// Password is stored as a bcrypt hash.
type AccountConfig struct {
	UserID       string
	Email        string
	PasswordHash string
	Roles        []string
	IsAdmin      bool
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service authenticates statically configured accounts and issues tokens.
type Service struct {
	accounts   map[string]AccountConfig
	jwtService *JWTService
}

// NewService creates a new auth service.
func NewService(jwtService *JWTService, accounts ...AccountConfig) *Service {
	byEmail := make(map[string]AccountConfig, len(accounts))
	for _, a := range accounts {
		byEmail[a.Email] = a
	}
	return &Service{accounts: byEmail, jwtService: jwtService}
}

// Login verifies credentials and returns an access token.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, apperror.NewValidation("email and password are required")
	}

	account, ok := s.accounts[creds.Email]
	if !ok {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(
		account.UserID, account.Email, account.Roles, account.IsAdmin)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	logger.Info(ctx, "token issued",
		"user_id", account.UserID,
		"email", account.Email)

	return &Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// HashPassword hashes a plaintext password for account configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
