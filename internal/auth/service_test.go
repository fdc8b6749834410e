package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
)

func testConfig() Config {
	return Config{
		Secret:        "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}
}

func TestLoginVerifyRoundTrip(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, logging.Discard())
	svc := NewService(testConfig(), repo)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Email: "a@b.com", Password: "long-enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Verify(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != identity.RoleUser {
		t.Fatalf("claims = %+v", claims)
	}

	// Access tokens are not refresh tokens.
	if _, _, err := svc.Refresh(ctx, pair.AccessToken); err == nil {
		t.Fatal("access token must not pass as refresh token")
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	repo := identity.NewMemoryRepository()
	svc := NewService(testConfig(), repo)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(context.Background(), token); err == nil {
			t.Fatalf("token %q must be rejected", token)
		}
	}
}

func TestLogoutInvalidatesIssuedTokens(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, logging.Discard())
	svc := NewService(testConfig(), repo)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Email: "a@b.com", Password: "long-enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Verify(ctx, pair.AccessToken); err == nil {
		t.Fatal("token must be invalid after logout")
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("refresh token must be invalid after logout")
	}
}
