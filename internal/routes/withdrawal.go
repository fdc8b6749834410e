package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/withdrawal"
)

// RegisterWithdrawalRoutes wires the user-facing fiat withdrawal endpoints.
func RegisterWithdrawalRoutes(r fiber.Router, h *withdrawal.Handler, idem fiber.Handler) {
    group := r.Group("/withdrawals")
    if idem != nil {
        group.Post("/", idem, h.Create)
    } else {
        group.Post("/", h.Create)
    }
    group.Get("/", h.List)
}
