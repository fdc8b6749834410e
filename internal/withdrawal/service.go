package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/wallet"
)

// RateSource yields the fiat-per-USDT rate paid on cash-outs.
type RateSource interface {
	SellRate(ctx context.Context) money.Amount
}

// Mover submits custodial transfers on behalf of an account.
type Mover interface {
	SendFromAccount(ctx context.Context, account custody.Account, toAddress string, amount money.Amount, idemToken string) (wallet.SendOutcome, error)
}

// TreasuryResolver yields the treasury custody account.
type TreasuryResolver interface {
	Resolve(ctx context.Context) (custody.Account, error)
}

// Config bounds cash-out sizes.
type Config struct {
	MinTokens money.Amount
	MaxTokens money.Amount
}

// DefaultConfig mirrors production limits.
func DefaultConfig() Config {
	return Config{
		MinTokens: money.MustParse("1"),
		MaxTokens: money.MustParse("50000"),
	}
}

// Service owns the withdrawal lifecycle. Tokens are locked in the
// treasury as soon as the request is accepted, so a pending request can
// never be double-spent from the user's wallet.
type Service struct {
	repo     Repository
	store    custody.Store
	rates    RateSource
	mover    Mover
	treasury TreasuryResolver
	cfg      Config
	logger   *slog.Logger
}

func NewService(repo Repository, store custody.Store, rates RateSource, mover Mover, treasury TreasuryResolver, cfg Config, logger *slog.Logger) *Service {
	return &Service{repo: repo, store: store, rates: rates, mover: mover, treasury: treasury, cfg: cfg, logger: logger}
}

// CreateInput is one cash-out request.
type CreateInput struct {
	UserID      string
	TokenAmount string
	BankEntity  string
	BankAccount string
}

// Create locks the tokens and records a pending request at the current
// sell rate.
func (s *Service) Create(ctx context.Context, input CreateInput) (Withdrawal, error) {
	tokens, err := money.Parse(input.TokenAmount)
	if err != nil || !tokens.IsPositive() {
		return Withdrawal{}, fmt.Errorf("%w: %q", custody.ErrInvalidAmount, input.TokenAmount)
	}
	if tokens < s.cfg.MinTokens || tokens > s.cfg.MaxTokens {
		return Withdrawal{}, fmt.Errorf("%w: withdrawal must be between %s and %s",
			custody.ErrInvalidAmount, s.cfg.MinTokens, s.cfg.MaxTokens)
	}
	if strings.TrimSpace(input.BankEntity) == "" || strings.TrimSpace(input.BankAccount) == "" {
		return Withdrawal{}, fmt.Errorf("%w: bank details required", custody.ErrInvalidAmount)
	}

	account, err := s.store.AccountByUser(ctx, input.UserID)
	if err != nil {
		return Withdrawal{}, err
	}
	treasury, err := s.treasury.Resolve(ctx)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("resolve treasury: %w", err)
	}

	outcome, err := s.mover.SendFromAccount(ctx, account, treasury.Address, tokens, "")
	if err != nil {
		return Withdrawal{}, err
	}

	rate := s.rates.SellRate(ctx)
	now := time.Now().UTC()
	w := Withdrawal{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		TokenAmount: tokens,
		Rate:        rate,
		FiatAmount:  tokens.Mul(rate),
		BankEntity:  input.BankEntity,
		BankAccount: input.BankAccount,
		Status:      StatusPending,
		LockTxID:    outcome.TransactionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		s.logger.Error("withdrawal row creation failed after lock transfer",
			"user_id", input.UserID, "lock_tx", outcome.TransactionID, "error", err)
		return Withdrawal{}, err
	}

	s.logger.Info("withdrawal created", "withdrawal_id", w.ID,
		"tokens", tokens.String(), "fiat", w.FiatAmount.String(), "lock_tx", w.LockTxID)
	return w, nil
}

// Approve records that the fiat payout was made to the user's bank.
func (s *Service) Approve(ctx context.Context, operatorID, withdrawalID string) (Withdrawal, error) {
	if err := s.repo.Approve(ctx, withdrawalID, operatorID, time.Now().UTC()); err != nil {
		return Withdrawal{}, err
	}
	s.logger.Info("withdrawal approved", "withdrawal_id", withdrawalID, "operator", operatorID)
	return s.repo.ByID(ctx, withdrawalID)
}

// Reject declines the request and refunds the locked tokens from the
// treasury. The row is claimed first so a refund can never run twice.
func (s *Service) Reject(ctx context.Context, operatorID, withdrawalID, reason string) (Withdrawal, error) {
	w, err := s.repo.ByID(ctx, withdrawalID)
	if err != nil {
		return Withdrawal{}, err
	}
	if err := s.repo.Reject(ctx, w.ID, operatorID, reason, time.Now().UTC()); err != nil {
		return Withdrawal{}, err
	}

	account, err := s.store.AccountByUser(ctx, w.UserID)
	if err != nil {
		return Withdrawal{}, err
	}
	treasury, err := s.treasury.Resolve(ctx)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("resolve treasury: %w", err)
	}

	outcome, err := s.mover.SendFromAccount(ctx, treasury, account.Address, w.TokenAmount, "")
	if err != nil {
		// The rejection already stands; the refund needs operator
		// follow-up.
		s.logger.Error("withdrawal refund failed",
			"withdrawal_id", w.ID, "tokens", w.TokenAmount.String(), "error", err)
		return s.repo.ByID(ctx, w.ID)
	}
	if err := s.repo.SetRefundTx(ctx, w.ID, outcome.TransactionID); err != nil {
		s.logger.Error("record withdrawal refund", "withdrawal_id", w.ID, "error", err)
	}

	s.logger.Info("withdrawal rejected and refunded", "withdrawal_id", w.ID,
		"operator", operatorID, "refund_tx", outcome.TransactionID)
	return s.repo.ByID(ctx, w.ID)
}

// List returns the user's requests, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Withdrawal, error) {
	return s.repo.ByUser(ctx, userID, limit)
}

// Pending lists undecided requests for the operator queue.
func (s *Service) Pending(ctx context.Context, limit int) ([]Withdrawal, error) {
	return s.repo.Pending(ctx, limit)
}
