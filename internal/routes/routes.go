package routes

import (
    "fmt"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/Shiwasmii/CunaPay.Api/internal/auth"
    "github.com/Shiwasmii/CunaPay.Api/internal/config"
    "github.com/Shiwasmii/CunaPay.Api/internal/identity"
    "github.com/Shiwasmii/CunaPay.Api/internal/middleware"
    "github.com/Shiwasmii/CunaPay.Api/internal/purchase"
    "github.com/Shiwasmii/CunaPay.Api/internal/staking"
    "github.com/Shiwasmii/CunaPay.Api/internal/wallet"
    "github.com/Shiwasmii/CunaPay.Api/internal/withdrawal"
)

// Deps aggregates shared dependencies required to wire routes. Handlers
// are constructed in main so background components share their services.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger

    Tokens      *auth.Service
    Auth        *auth.Handler
    Profile     *identity.Handler
    Wallet      *wallet.Handler
    Staking     *staking.Handler
    Purchases   *purchase.Handler
    Withdrawals *withdrawal.Handler
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    // Enforce DB/Redis presence outside of dev, even though main also checks.
    if !isDev(d.Cfg.AppEnv) {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
    }
    // Middlewares
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    // Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
    app.Use(logger.New(logger.Config{
        Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
        TimeFormat: "15:04:05",
        TimeZone:   "Local",
    }))

    // Health
    RegisterHealthRoutes(app, d)

    // API routes
    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        reqID, _ := c.Locals("X-Request-ID").(string)
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": reqID,
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    // Public routes
    rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
    RegisterAuthRoutes(api, d.Auth, rateLimiter)

    // Protected routes
    jwtmw := middleware.JWTAuth(d.Tokens)
    protected := api.Group("", jwtmw)
    protected.Post("/auth/logout", d.Auth.Logout)
    RegisterProfileRoutes(protected, d.Profile)
    RegisterWalletRoutes(protected, d.Wallet)
    RegisterStakingRoutes(protected, d.Staking)

    // Fiat on/off ramp. The HTTP idempotency layer shields order creation
    // from client retries; token transfers carry their own keys.
    var httpIdem fiber.Handler
    if d.Cache != nil {
        httpIdem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
    }
    RegisterPurchaseRoutes(protected, d.Purchases, httpIdem)
    RegisterWithdrawalRoutes(protected, d.Withdrawals, httpIdem)

    // Operator review queue. Every admin action leaves an audit trail.
    admin := protected.Group("/admin", middleware.RequireAdmin(), middleware.Audit(d.Logger))
    RegisterAdminRoutes(admin, d.Purchases, d.Withdrawals)

    return nil
}

func isDev(env string) bool {
    switch strings.ToLower(env) {
    case "dev", "development", "local":
        return true
    default:
        return false
    }
}
