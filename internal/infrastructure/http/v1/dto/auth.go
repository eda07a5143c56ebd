package dto

import (
	"time"

	"kardex/internal/domain/auth"
)

// TokenRequest for POST /auth/token.
type TokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts request to domain credentials.
func (r *TokenRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Email: r.Email, Password: r.Password}
}

// TokenResponse carries the issued access token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FromToken creates TokenResponse from a domain token.
func FromToken(t *auth.Token) TokenResponse {
	return TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresAt:   t.ExpiresAt,
	}
}
