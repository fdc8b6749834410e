package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	orderKeyPrefix       = "orders:v1:"
	orderInProgress      = "__in_progress__"
	redisOpTimeout       = 2 * time.Second
)

// storedReply is a completed HTTP response retained for replay. Token
// transfers carry their own idempotency keys inside the wallet service;
// this layer covers order creation, where a client retry after a network
// cut must not open a second purchase or withdrawal.
type storedReply struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (r storedReply) send(c *fiber.Ctx) error {
	for header, value := range r.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(r.Status).SendString(r.Body)
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// on unsafe methods. The first request reserves the key; concurrent
// duplicates are rejected until it completes.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := orderKeyPrefix + key

		ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil && cached == orderInProgress:
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		case err == nil:
			var reply storedReply
			if err := json.Unmarshal([]byte(cached), &reply); err != nil {
				logger.Warn("stored idempotent reply unreadable", "key", key, "error", err)
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			return reply.send(c)
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		if err := cache.SetNX(ctx, cacheKey, orderInProgress, ttl).Err(); err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}

		if err := c.Next(); err != nil {
			// Errors are not retained; the client may retry the key.
			releaseKey(cache, cacheKey)
			return err
		}

		reply := storedReply{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			reply.Headers[string(k)] = string(v)
		})

		payload, err := json.Marshal(reply)
		if err != nil {
			logger.Error("encode idempotent reply", "key", key, "error", err)
			releaseKey(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Error("persist idempotent reply", "key", key, "error", err)
			releaseKey(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}

		return nil
	}
}

func releaseKey(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}
