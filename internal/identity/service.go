package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service manages identity lifecycle.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates a new user with a hashed password.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if !strings.Contains(email, "@") {
		return User{}, errors.New("valid email required")
	}
	if len(creds.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(creds.Name),
		Role:         RoleUser,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate verifies credentials.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, errors.New("invalid credentials")
	}
	return user, nil
}

// SetBankDetails stores the payout destination used by withdrawals.
func (s *Service) SetBankDetails(ctx context.Context, userID string, details BankDetails) error {
	if strings.TrimSpace(details.Entity) == "" || strings.TrimSpace(details.Account) == "" {
		return errors.New("bank entity and account required")
	}
	return s.repo.UpdateBankDetails(ctx, userID, details)
}

// ByID fetches a user.
func (s *Service) ByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// EnsureAdmin seeds the operator account at startup so review queues
// and the treasury owner reference exist on a fresh install. Returns
// the admin user whether created or pre-existing.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if existing, err := s.repo.FindByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	admin := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Operator",
		Role:         RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return User{}, err
	}
	s.logger.Info("admin account seeded", "user_id", admin.ID)
	return admin, nil
}
