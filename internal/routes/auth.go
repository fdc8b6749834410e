package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/auth"
)

// RegisterAuthRoutes wires the public authentication endpoints. Logout
// requires a verified token and is registered on the protected group.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
    group := r.Group("/auth")
    group.Post("/register", h.Register)
    if rateLimiter != nil {
        group.Post("/login", rateLimiter, h.Login)
    } else {
        group.Post("/login", h.Login)
    }
    group.Post("/refresh", h.Refresh)
}
