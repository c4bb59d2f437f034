package middleware

import (
	"strings"

	"github.com/gearshelf/api/internal/auth"
	"github.com/gearshelf/api/internal/session"
	"github.com/gearshelf/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

const sessionKey = "session"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates auth middleware with JWKS verification
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// NewAuthMiddlewareWithFallback creates auth middleware with both JWKS and legacy HMAC support
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// NewLegacyAuthMiddleware creates auth middleware using only HMAC signing (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates the bearer token and stores the operator session.
// Websocket upgrades may pass the token as ?token= instead.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing authorization header")
		}
		if tokenString == "" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		// Try JWKS verification first
		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				return m.next(c, claims.UserID, claims.Email, claims.DisplayName(), session.SourceJWKS)
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			return m.next(c, claims.UserID, claims.Email, claims.Name, session.SourceLegacy)
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

func (m *AuthMiddleware) next(c *fiber.Ctx, userID, email, name string, source session.Source) error {
	sess, err := session.New(userID, email, name, source)
	if err != nil {
		return response.Unauthorized(c, "Token has no subject")
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

// GetSession returns the operator session of an authenticated request, or nil
func GetSession(c *fiber.Ctx) *session.Session {
	if sess, ok := c.Locals(sessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	return GetSession(c).Creator()
}
