package auth

import (
	stderrors "errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Profile *domain.Profile
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes. Deactivated profiles
// are rejected even when their token is still valid.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	profile, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !profile.IsActive {
		return apperrors.NewUnauthorized("user is deactivated")
	}

	c.Locals(principalKey, &Principal{Profile: profile})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ProfileFromContext returns the caller's profile or an Unauthorized error.
func ProfileFromContext(c *fiber.Ctx) (*domain.Profile, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.Profile == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.Profile, nil
}
