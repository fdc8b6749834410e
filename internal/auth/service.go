package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
)

// Config holds token signing settings.
type Config struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Service issues, refreshes, and revokes tokens.
type Service struct {
	cfg    Config
	idRepo identity.Repository
}

func NewService(cfg Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo}
}

// TokenPair is the login result.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues an access and refresh token for an authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, accessExp, err := sign(user, s.cfg.Secret, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := sign(user, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Verify checks an access token and the user's current token version.
func (s *Service) Verify(ctx context.Context, tokenStr string) (Claims, error) {
	claims, err := verify(tokenStr, s.cfg.Secret)
	if err != nil {
		return Claims{}, err
	}
	user, err := s.idRepo.FindByID(ctx, claims.UserID)
	if err != nil || user.TokenVersion != claims.Version {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Refresh verifies the refresh token and returns a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := verify(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, errors.New("invalid refresh token")
	}
	user, err := s.idRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", 0, errors.New("user not found")
	}
	if user.TokenVersion != claims.Version {
		return "", 0, errors.New("token invalidated")
	}

	access, _, err := sign(user, s.cfg.Secret, s.cfg.AccessTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTTL.Seconds()), nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
