package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/wallet"
)

// RateSource yields the fiat-per-USDT rate charged on purchases.
type RateSource interface {
	BuyRate(ctx context.Context) money.Amount
}

// Mover submits custodial transfers on behalf of an account.
type Mover interface {
	SendFromAccount(ctx context.Context, account custody.Account, toAddress string, amount money.Amount, idemToken string) (wallet.SendOutcome, error)
	TopUpGas(ctx context.Context, account custody.Account, toAddress string, amount money.Amount) (string, error)
}

// TreasuryResolver yields the treasury custody account.
type TreasuryResolver interface {
	Resolve(ctx context.Context) (custody.Account, error)
}

// Config bounds order sizes and sets the TRX deposit granted alongside
// released tokens.
type Config struct {
	MinFiat  money.Amount
	MaxFiat  money.Amount
	GasTopUp money.Amount
}

// DefaultConfig mirrors production limits.
func DefaultConfig() Config {
	return Config{
		MinFiat:  money.MustParse("1"),
		MaxFiat:  money.MustParse("500000"),
		GasTopUp: money.MustParse("1"),
	}
}

// Service owns the purchase lifecycle: quoted at creation, settled from
// the treasury on approval.
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

// CreateInput is one purchase order request.
type CreateInput struct {
	UserID     string
	FiatAmount string
	PaymentRef string
}

// Create quotes and records a pending order. The rate is frozen here;
// approval settles at this price regardless of later market moves.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	fiat, err := money.Parse(input.FiatAmount)
	if err != nil || !fiat.IsPositive() {
		return Purchase{}, fmt.Errorf("%w: %q", custody.ErrInvalidAmount, input.FiatAmount)
	}
	if fiat < s.cfg.MinFiat || fiat > s.cfg.MaxFiat {
		return Purchase{}, fmt.Errorf("%w: purchase must be between %s and %s",
			custody.ErrInvalidAmount, s.cfg.MinFiat, s.cfg.MaxFiat)
	}
	if input.PaymentRef == "" {
		return Purchase{}, fmt.Errorf("%w: payment reference required", custody.ErrInvalidAmount)
	}
	if _, err := s.store.AccountByUser(ctx, input.UserID); err != nil {
		return Purchase{}, err
	}

	rate := s.rates.BuyRate(ctx)
	now := time.Now().UTC()
	p := Purchase{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		FiatAmount:  fiat,
		Rate:        rate,
		TokenAmount: fiat.Div(rate),
		PaymentRef:  input.PaymentRef,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Purchase{}, err
	}
	s.logger.Info("purchase created", "purchase_id", p.ID,
		"fiat", fiat.String(), "rate", rate.String(), "tokens", p.TokenAmount.String())
	return p, nil
}

// Approve releases the quoted tokens from the treasury. The pending row
// is claimed first so two operators cannot both settle the same order.
func (s *Service) Approve(ctx context.Context, operatorID, purchaseID string) (Purchase, error) {
	p, err := s.repo.ByID(ctx, purchaseID)
	if err != nil {
		return Purchase{}, err
	}

	now := time.Now().UTC()
	if err := s.repo.Approve(ctx, p.ID, operatorID, now); err != nil {
		return Purchase{}, err
	}

	account, err := s.store.AccountByUser(ctx, p.UserID)
	if err != nil {
		return Purchase{}, err
	}
	treasury, err := s.treasury.Resolve(ctx)
	if err != nil {
		return Purchase{}, fmt.Errorf("resolve treasury: %w", err)
	}

	outcome, err := s.mover.SendFromAccount(ctx, treasury, account.Address, p.TokenAmount, "")
	if err != nil {
		if failErr := s.repo.MarkFailed(ctx, p.ID, err.Error()); failErr != nil {
			s.logger.Error("mark purchase failed", "purchase_id", p.ID, "error", failErr)
		}
		return Purchase{}, err
	}
	if err := s.repo.SetSettlementTx(ctx, p.ID, outcome.TransactionID); err != nil {
		s.logger.Error("record purchase settlement", "purchase_id", p.ID, "error", err)
	}

	// The TRX deposit lets a fresh wallet pay network fees on its first
	// outbound transfer. Best effort: token release already happened.
	if s.cfg.GasTopUp.IsPositive() {
		if _, err := s.mover.TopUpGas(ctx, treasury, account.Address, s.cfg.GasTopUp); err != nil {
			s.logger.Warn("gas top-up failed", "purchase_id", p.ID, "error", err)
		}
	}

	s.logger.Info("purchase approved", "purchase_id", p.ID,
		"operator", operatorID, "settlement_tx", outcome.TransactionID)
	return s.repo.ByID(ctx, p.ID)
}

// Reject declines a pending order.
func (s *Service) Reject(ctx context.Context, operatorID, purchaseID, reason string) (Purchase, error) {
	if err := s.repo.Reject(ctx, purchaseID, operatorID, reason, time.Now().UTC()); err != nil {
		return Purchase{}, err
	}
	s.logger.Info("purchase rejected", "purchase_id", purchaseID, "operator", operatorID)
	return s.repo.ByID(ctx, purchaseID)
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Purchase, error) {
	return s.repo.ByUser(ctx, userID, limit)
}

// Pending lists undecided orders for the operator queue.
func (s *Service) Pending(ctx context.Context, limit int) ([]Purchase, error) {
	return s.repo.Pending(ctx, limit)
}
