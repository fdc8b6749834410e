package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/Shiwasmii/CunaPay.Api/internal/purchase"
    "github.com/Shiwasmii/CunaPay.Api/internal/withdrawal"
)

// RegisterAdminRoutes wires the operator review queue. The caller mounts
// these behind the admin role check.
func RegisterAdminRoutes(r fiber.Router, purchases *purchase.Handler, withdrawals *withdrawal.Handler) {
    r.Get("/purchases/pending", purchases.Pending)
    r.Post("/purchases/:purchaseId/approve", purchases.Approve)
    r.Post("/purchases/:purchaseId/reject", purchases.Reject)

    r.Get("/withdrawals/pending", withdrawals.Pending)
    r.Post("/withdrawals/:withdrawalId/approve", withdrawals.Approve)
    r.Post("/withdrawals/:withdrawalId/reject", withdrawals.Reject)
}
