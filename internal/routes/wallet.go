package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/wallet"
)

// RegisterWalletRoutes wires balance, transfer and history endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
    group := r.Group("/wallet")
    group.Get("/balances", h.Balances)
    group.Post("/send", h.Send)
    group.Get("/transactions", h.Transactions)
    group.Get("/history", h.History)
}
