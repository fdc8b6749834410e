package routes

import (
    "context"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds the readiness endpoint. The service is only
// healthy when both the custody database and Redis answer, since every
// money movement touches both.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
    app.Get("/healthz", func(c *fiber.Ctx) error {
        ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
        defer cancel()

        checks := fiber.Map{"postgres": "ok", "redis": "ok"}
        healthy := true
        if d.DB != nil {
            if err := d.DB.Ping(ctx); err != nil {
                checks["postgres"] = err.Error()
                healthy = false
            }
        }
        if d.Cache != nil {
            if err := d.Cache.Ping(ctx).Err(); err != nil {
                checks["redis"] = err.Error()
                healthy = false
            }
        }

        status := http.StatusOK
        if !healthy {
            status = http.StatusServiceUnavailable
        }
        return c.Status(status).JSON(fiber.Map{
            "status":    checks,
            "timestamp": time.Now().UTC().Format(time.RFC3339Nano),
        })
    })
}
