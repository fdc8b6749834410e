package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newRequestIDApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDHeader).(string)
		return c.SendString(id)
	})
	return app
}

func TestRequestIDMintsWhenAbsent(t *testing.T) {
	app := newRequestIDApp()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	id := resp.Header.Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("response id %q is not a uuid: %v", id, err)
	}
}

func TestRequestIDReplacesNonUUID(t *testing.T) {
	app := newRequestIDApp()

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	id := resp.Header.Get(requestIDHeader)
	if id == "not-a-uuid" {
		t.Fatal("unparseable inbound id must be replaced")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("minted id %q is not a uuid: %v", id, err)
	}
}

func TestRequestIDHonorsInboundUUID(t *testing.T) {
	app := newRequestIDApp()
	inbound := uuid.NewString()

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, inbound)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != inbound {
		t.Fatalf("request id = %q, want inbound %q", got, inbound)
	}
}
