package identity

import (
	"context"
	"testing"

	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "Ana@Example.com", Password: "correct-horse", Name: "Ana"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.Role != RoleUser {
		t.Fatalf("role = %s, want user", user.Role)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "ana@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "ana@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected authentication failure")
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "ghost@example.com", Password: "whatever"}); err == nil {
		t.Fatal("expected authentication failure for unknown user")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "no-at-sign", Password: "long-enough"}); err == nil {
		t.Fatal("expected email validation failure")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "short"}); err == nil {
		t.Fatal("expected password validation failure")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long-enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long-enough"}); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSetBankDetails(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long-enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetBankDetails(ctx, user.ID, BankDetails{Entity: "", Account: "1"}); err == nil {
		t.Fatal("expected validation failure")
	}
	if err := svc.SetBankDetails(ctx, user.ID, BankDetails{Entity: "Banco Uno", Account: "0102"}); err != nil {
		t.Fatalf("set bank details: %v", err)
	}
	got, _ := svc.ByID(ctx, user.ID)
	if got.BankEntity != "Banco Uno" || got.BankAccount != "0102" {
		t.Fatalf("bank details = %+v", got)
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	first, err := svc.EnsureAdmin(ctx, "ops@example.com", "super-secret-pass")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if first.Role != RoleAdmin {
		t.Fatalf("role = %s, want admin", first.Role)
	}
	second, err := svc.EnsureAdmin(ctx, "ops@example.com", "different-pass")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("admin must be seeded once")
	}
}
