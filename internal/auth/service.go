package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated is returned when a session cannot be resolved to a user.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated user behind a session.
type Identity struct {
	UserID int64
	Name   string
}

// Service resolves session tokens to identities and mints new ones.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// Resolve validates a session token. A "Bearer " prefix is tolerated.
func (s *Service) Resolve(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return Identity{UserID: claims.UserID, Name: claims.Name}, nil
}

// Issue mints a token for userID.
func (s *Service) Issue(userID int64, name string) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("issue token: invalid user id %d", userID)
	}
	token, err := GenerateToken(s.jwtConfig, userID, name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}
