package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned when a token fails to parse or validate.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenMismatch is returned when a valid token names another room or user.
	ErrTokenMismatch = errors.New("token does not match room participant")
)

// Service issues and checks session tokens.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new token service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// IssueSessionToken returns a token binding userID to roomID.
func (s *Service) IssueSessionToken(roomID, userID, name string) (string, error) {
	token, err := GenerateToken(s.jwtConfig, roomID, userID, name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a session token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Authorize checks that claims were issued for userID in roomID.
func (s *Service) Authorize(claims *Claims, roomID, userID string) error {
	if claims == nil {
		return ErrInvalidToken
	}
	if claims.RoomID != roomID || claims.UserID != userID {
		return ErrTokenMismatch
	}
	return nil
}
