package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/staking"
)

// RegisterStakingRoutes wires savings position endpoints.
func RegisterStakingRoutes(r fiber.Router, h *staking.Handler) {
    group := r.Group("/stakes")
    group.Post("/", h.Open)
    group.Get("/", h.List)
    group.Post("/:stakeId/close", h.Close)
}
