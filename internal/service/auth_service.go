package service

import (
	"context"
	"time"

	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// AuthService issues bearer tokens for existing profiles. Sign-in itself is
// handled by the identity provider; this covers operator and test tokens.
type AuthService struct {
	users    repository.UserRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:    users,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// Tokens exposes the manager so the HTTP middleware verifies with the same key.
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokenMgr
}

// IssueToken signs a token for an active profile.
func (s *AuthService) IssueToken(ctx context.Context, userID string) (string, time.Time, error) {
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	if !profile.IsActive {
		return "", time.Time{}, apperrors.NewValidationError("user is deactivated", map[string]any{"user_id": userID})
	}
	token, exp, err := s.tokenMgr.GenerateToken(profile.ID, profile.Role)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}
