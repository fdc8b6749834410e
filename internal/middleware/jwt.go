package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/auth"
	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
)

// JWTAuth returns a middleware that validates access tokens and stores
// the caller's identity in request locals.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := tokens.Verify(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// RequireAdmin gates operator endpoints. It must run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != identity.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "operator access required")
		}
		return c.Next()
	}
}
