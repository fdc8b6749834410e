package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/purchase"
)

// RegisterPurchaseRoutes wires the user-facing fiat purchase endpoints.
func RegisterPurchaseRoutes(r fiber.Router, h *purchase.Handler, idem fiber.Handler) {
    group := r.Group("/purchases")
    if idem != nil {
        group.Post("/", idem, h.Create)
    } else {
        group.Post("/", h.Create)
    }
    group.Get("/", h.List)
}
