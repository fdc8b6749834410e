package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/identity"
)

// RegisterProfileRoutes wires the authenticated profile endpoints.
func RegisterProfileRoutes(r fiber.Router, h *identity.Handler) {
    r.Get("/me", h.Profile)
    r.Put("/me/bank", h.SetBankDetails)
}
