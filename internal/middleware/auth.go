package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/platewise/api/internal/auth"
	"github.com/platewise/api/pkg/response"
)

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for tokens issued by this service
	tokenTTL  time.Duration
}

// NewAuthMiddleware accepts OIDC tokens and, when jwtSecret is set, HMAC tokens
// issued by this service. Either may be disabled but not both.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string, tokenTTL time.Duration) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Identity is the caller resolved from a bearer token
type Identity struct {
	UserID string
	Email  string
	Name   string
}

var (
	errMissingHeader = errors.New("Missing authorization header")
	errBadHeader     = errors.New("Invalid authorization header format")
	errBadToken      = errors.New("Invalid or expired token")
	errNoAuth        = errors.New("Authentication not configured")
)

// Identify resolves an Authorization header value. OIDC tokens are tried
// first, then tokens issued by this service.
func (m *AuthMiddleware) Identify(authHeader string) (*Identity, error) {
	if authHeader == "" {
		return nil, errMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errBadHeader
	}
	tokenString := parts[1]

	if m.verifier != nil {
		if claims, err := m.verifier.Validate(tokenString); err == nil {
			return &Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
		}
		if m.jwtSecret == "" {
			return nil, errBadToken
		}
	}

	if m.jwtSecret != "" {
		claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
		if err != nil {
			return nil, errBadToken
		}
		return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
	}

	return nil, errNoAuth
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := m.Identify(c.Get("Authorization"))
		if err != nil {
			return response.Unauthorized(c, err.Error())
		}
		setIdentity(c, id)
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}

// GenerateToken issues an HMAC token for userID
func (m *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	if m.jwtSecret == "" {
		return "", jwt.ErrTokenUnverifiable
	}
	return auth.IssueLegacyToken(userID, email, m.jwtSecret, m.tokenTTL)
}
