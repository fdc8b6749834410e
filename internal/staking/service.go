// Package staking implements fixed-term USDT staking: principal moves to
// the treasury wallet on open, accrues simple daily interest, and is
// paid back with interest from the treasury on close.
package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/events"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/wallet"
)

// Mover submits custodial transfers on behalf of an account.
type Mover interface {
	SendFromAccount(ctx context.Context, account custody.Account, toAddress string, amount money.Amount, idemToken string) (wallet.SendOutcome, error)
}

// TreasuryResolver yields the treasury custody account.
type TreasuryResolver interface {
	Resolve(ctx context.Context) (custody.Account, error)
}

// Config bounds stake sizes and the accrual math.
type Config struct {
	DailyRateBp int
	MinStake    money.Amount
	MaxStake    money.Amount
	// MaxPrincipal and AccruedCapMultiple bound what a close is allowed
	// to pay out; a stake outside them is treated as corrupt.
	MaxPrincipal       money.Amount
	AccruedCapMultiple int
	// MaxPayout bounds the total a single close may settle, independent
	// of the per-component limits.
	MaxPayout money.Amount
	// MaxAccrualDays clamps the elapsed time credited in one pass.
	MaxAccrualDays float64
}

// DefaultConfig mirrors production staking terms.
func DefaultConfig() Config {
	return Config{
		DailyRateBp:        10,
		MinStake:           money.MustParse("10"),
		MaxStake:           money.MustParse("100000"),
		MaxPrincipal:       money.MustParse("1000000"),
		AccruedCapMultiple: 10,
		MaxPayout:          money.MustParse("11000000"),
		MaxAccrualDays:     365,
	}
}

// Service owns the stake lifecycle.
type Service struct {
	store    custody.Store
	mover    Mover
	treasury TreasuryResolver
	bus      *events.Bus
	cfg      Config
	logger   *slog.Logger
}

func NewService(store custody.Store, mover Mover, treasury TreasuryResolver, bus *events.Bus, cfg Config, logger *slog.Logger) *Service {
	return &Service{store: store, mover: mover, treasury: treasury, bus: bus, cfg: cfg, logger: logger}
}

// View is a stake with its interest brought forward to read time. The
// preview is not persisted; durable accrual happens on close.
type View struct {
	ID             string
	Principal      money.Amount
	Accrued        money.Amount
	DailyRateBp    int
	Status         custody.StakeStatus
	StartAt        time.Time
	ClosedAt       *time.Time
	FundingTxID    string
	SettlementTxID string
}

// OpenInput is one stake-open request.
type OpenInput struct {
	UserID string
	Amount string
}

// Open locks principal into a new stake. The funds move to the treasury
// wallet first; the stake row exists only once that transfer was
// accepted by the chain.
func (s *Service) Open(ctx context.Context, input OpenInput) (View, error) {
	amount, err := money.Parse(input.Amount)
	if err != nil || !amount.IsPositive() {
		return View{}, fmt.Errorf("%w: %q", custody.ErrInvalidAmount, input.Amount)
	}
	if amount < s.cfg.MinStake || amount > s.cfg.MaxStake {
		return View{}, fmt.Errorf("%w: stake must be between %s and %s",
			custody.ErrInvalidAmount, s.cfg.MinStake, s.cfg.MaxStake)
	}

	account, err := s.store.AccountByUser(ctx, input.UserID)
	if err != nil {
		return View{}, err
	}
	treasury, err := s.treasury.Resolve(ctx)
	if err != nil {
		return View{}, fmt.Errorf("resolve treasury: %w", err)
	}

	outcome, err := s.mover.SendFromAccount(ctx, account, treasury.Address, amount, "")
	if err != nil {
		return View{}, err
	}

	now := time.Now().UTC()
	stake := custody.Stake{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Principal:     amount,
		Accrued:       0,
		DailyRateBp:   s.cfg.DailyRateBp,
		Status:        custody.StakeActive,
		FundingTxID:   outcome.TransactionID,
		StartAt:       now,
		LastAccrualAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateStake(ctx, stake); err != nil {
		// The principal already moved; the stake row must not be lost
		// silently.
		s.logger.Error("stake row creation failed after funding transfer",
			"account_id", account.ID, "transaction_id", outcome.TransactionID, "error", err)
		return View{}, err
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type: events.StakeOpened, AccountID: account.ID,
			TransactionID: outcome.TransactionID, Amount: amount,
		})
	}
	s.logger.Info("stake opened", "stake_id", stake.ID,
		"principal", amount.String(), "funding_tx", outcome.TransactionID)
	return toView(stake), nil
}

// List returns the user's stakes, active interest brought forward.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	account, err := s.store.AccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stakes, err := s.store.StakesByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]View, 0, len(stakes))
	for _, st := range stakes {
		if st.Status == custody.StakeActive {
			st, _ = s.accrueTo(st, now)
		}
		views = append(views, toView(st))
	}
	return views, nil
}

// CloseResult reports a settled stake.
type CloseResult struct {
	StakeID        string
	Principal      money.Amount
	Accrued        money.Amount
	Total          money.Amount
	SettlementTxID string
	ChainTxID      string
}

// Close settles an active stake: interest is accrued to now, the payout
// is integrity-checked, and principal plus interest returns from the
// treasury to the holder. A stake failing the integrity bounds stays
// active and the close is refused.
func (s *Service) Close(ctx context.Context, userID, stakeID string) (CloseResult, error) {
	account, err := s.store.AccountByUser(ctx, userID)
	if err != nil {
		return CloseResult{}, err
	}
	stake, err := s.store.StakeByID(ctx, stakeID)
	if err != nil {
		return CloseResult{}, err
	}
	// Ownership failures look identical to a missing stake.
	if stake.AccountID != account.ID || stake.Status != custody.StakeActive {
		return CloseResult{}, custody.ErrStakeNotFound
	}

	now := time.Now().UTC()
	stake, changed := s.accrueTo(stake, now)

	if err := s.checkIntegrity(stake); err != nil {
		s.logger.Error("stake failed integrity check on close",
			"stake_id", stake.ID, "principal", stake.Principal.String(),
			"accrued", stake.Accrued.String())
		return CloseResult{}, err
	}

	if changed {
		if err := s.store.UpdateStakeAccrual(ctx, stake.ID, stake.Accrued, stake.LastAccrualAt); err != nil {
			return CloseResult{}, err
		}
	}

	treasury, err := s.treasury.Resolve(ctx)
	if err != nil {
		return CloseResult{}, fmt.Errorf("resolve treasury: %w", err)
	}
	total := stake.Principal.Add(stake.Accrued)

	outcome, err := s.mover.SendFromAccount(ctx, treasury, account.Address, total, "")
	if err != nil {
		return CloseResult{}, err
	}

	if err := s.store.CloseStake(ctx, stake.ID, outcome.TransactionID, now); err != nil {
		if errors.Is(err, custody.ErrConflict) {
			s.logger.Error("stake closed concurrently after payout",
				"stake_id", stake.ID, "settlement_tx", outcome.TransactionID)
		}
		return CloseResult{}, err
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type: events.StakeClosed, AccountID: account.ID,
			TransactionID: outcome.TransactionID, Amount: total,
		})
	}
	s.logger.Info("stake closed", "stake_id", stake.ID,
		"total", total.String(), "settlement_tx", outcome.TransactionID)

	return CloseResult{
		StakeID:        stake.ID,
		Principal:      stake.Principal,
		Accrued:        stake.Accrued,
		Total:          total,
		SettlementTxID: outcome.TransactionID,
		ChainTxID:      outcome.ChainTxID,
	}, nil
}

// accrueTo credits simple daily interest for the time elapsed since the
// last accrual. Elapsed time is clamped so a stale stake cannot credit
// unbounded interest in one pass, and the accrued total never drops
// below zero.
func (s *Service) accrueTo(stake custody.Stake, now time.Time) (custody.Stake, bool) {
	elapsed := now.Sub(stake.LastAccrualAt)
	if elapsed <= 0 {
		return stake, false
	}
	days := elapsed.Hours() / 24
	if days > s.cfg.MaxAccrualDays {
		days = s.cfg.MaxAccrualDays
	}
	delta := money.DailyInterest(stake.Principal, stake.DailyRateBp, days)
	if delta == 0 {
		return stake, false
	}
	stake.Accrued = money.Max(0, stake.Accrued.Add(delta))
	stake.LastAccrualAt = now
	return stake, true
}

func (s *Service) checkIntegrity(stake custody.Stake) error {
	if !stake.Principal.IsPositive() || stake.Principal > s.cfg.MaxPrincipal {
		return fmt.Errorf("%w: principal %s out of bounds", custody.ErrIntegrity, stake.Principal)
	}
	limit := stake.Principal * money.Amount(s.cfg.AccruedCapMultiple)
	if stake.Accrued < 0 || stake.Accrued > limit {
		return fmt.Errorf("%w: accrued %s out of bounds for principal %s",
			custody.ErrIntegrity, stake.Accrued, stake.Principal)
	}
	total := stake.Principal.Add(stake.Accrued)
	if !total.IsPositive() || total > s.cfg.MaxPayout {
		return fmt.Errorf("%w: payout %s out of bounds", custody.ErrIntegrity, total)
	}
	return nil
}

func toView(st custody.Stake) View {
	return View{
		ID:             st.ID,
		Principal:      st.Principal,
		Accrued:        st.Accrued,
		DailyRateBp:    st.DailyRateBp,
		Status:         st.Status,
		StartAt:        st.StartAt,
		ClosedAt:       st.ClosedAt,
		FundingTxID:    st.FundingTxID,
		SettlementTxID: st.SettlementTxID,
	}
}
