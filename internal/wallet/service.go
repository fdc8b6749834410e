// Package wallet implements custody account onboarding, balance
// calculation, and the money-movement state machine over the ledger
// store and the blockchain gateway.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/events"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
)

// KeyVault seals and opens custody private keys.
type KeyVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Balances is the computed balance sheet for one custody account.
// Available is derived, never stored: token balance minus the principal
// locked in active stakes, floored at zero.
type Balances struct {
	WalletID  string
	Address   string
	TRX       money.Amount
	USDT      money.Amount
	Locked    money.Amount
	Available money.Amount
	AsOf      time.Time
}

// BalanceSource produces balance sheets; the caching decorator and the
// service both implement it.
type BalanceSource interface {
	Balances(ctx context.Context, userID string) (Balances, error)
}

// Service orchestrates custody operations. It holds no in-process locks
// across store or gateway calls; per-row serialization comes from the
// store's conditional writes.
type Service struct {
	store   custody.Store
	gateway tron.Gateway
	vault   KeyVault
	bus     *events.Bus
	idem    *IdempotencyStore
	logger  *slog.Logger
}

// NewService wires a wallet service. bus and idem may be nil; events and
// idempotency are then disabled.
func NewService(store custody.Store, gateway tron.Gateway, vault KeyVault, bus *events.Bus, idem *IdempotencyStore, logger *slog.Logger) *Service {
	return &Service{store: store, gateway: gateway, vault: vault, bus: bus, idem: idem, logger: logger}
}

// CreateWallet is the gateway slice the treasury resolver needs.
func (s *Service) CreateWallet(ctx context.Context) (string, string, error) {
	w, err := s.gateway.CreateWallet(ctx)
	if err != nil {
		return "", "", err
	}
	return w.Address, w.PrivateKey, nil
}

// CreateAccount provisions a custody account for a user at onboarding.
// It is idempotent: an existing account is returned as-is.
func (s *Service) CreateAccount(ctx context.Context, userID string) (custody.Account, error) {
	if existing, err := s.store.AccountByUser(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, custody.ErrAccountNotFound) {
		return custody.Account{}, err
	}

	w, err := s.gateway.CreateWallet(ctx)
	if err != nil {
		return custody.Account{}, fmt.Errorf("provision wallet: %w", err)
	}
	encrypted, err := s.vault.Encrypt(w.PrivateKey)
	if err != nil {
		return custody.Account{}, fmt.Errorf("seal wallet key: %w", err)
	}

	now := time.Now().UTC()
	account := custody.Account{
		ID:           uuid.NewString(),
		UserID:       userID,
		Address:      w.Address,
		EncryptedKey: encrypted,
		Role:         custody.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return custody.Account{}, err
	}
	s.logger.Info("custody account created", "user_id", userID, "address", w.Address)
	return account, nil
}

// Account returns the custody account owned by the user.
func (s *Service) Account(ctx context.Context, userID string) (custody.Account, error) {
	return s.store.AccountByUser(ctx, userID)
}

// Balances computes the balance sheet for a user's account: on-chain
// native and token balances from the gateway, locked principal from the
// store's active stakes, and the derived available balance.
func (s *Service) Balances(ctx context.Context, userID string) (Balances, error) {
	account, err := s.store.AccountByUser(ctx, userID)
	if err != nil {
		return Balances{}, err
	}
	return s.balancesForAccount(ctx, account)
}

func (s *Service) balancesForAccount(ctx context.Context, account custody.Account) (Balances, error) {
	trx, err := s.gateway.TRXBalance(ctx, account.Address)
	if err != nil {
		return Balances{}, fmt.Errorf("%w: %v", custody.ErrGatewayUnavailable, err)
	}
	usdt, err := s.gateway.USDTBalance(ctx, account.Address)
	if err != nil {
		return Balances{}, fmt.Errorf("%w: %v", custody.ErrGatewayUnavailable, err)
	}

	stakes, err := s.store.ActiveStakesByAccount(ctx, account.ID)
	if err != nil {
		return Balances{}, err
	}
	var locked money.Amount
	for _, st := range stakes {
		locked = locked.Add(st.Principal)
	}

	return Balances{
		WalletID:  account.ID,
		Address:   account.Address,
		TRX:       trx,
		USDT:      usdt,
		Locked:    locked,
		Available: money.Max(0, usdt.Sub(locked)),
		AsOf:      time.Now().UTC(),
	}, nil
}

// SendInput captures one custodial transfer request.
type SendInput struct {
	UserID           string
	ToAddress        string
	Amount           string
	IdempotencyToken string
}

// SendOutcome reports the terminal state of a transfer submission.
// Status broadcasted means the chain accepted the transaction but final
// settlement is still pending.
type SendOutcome struct {
	TransactionID string
	ChainTxID     string
	Status        custody.TxStatus
	FailReason    string
}

// Send moves USDT from the user's custody account to an arbitrary
// address. Each step is a commit point; an explicit gateway rejection
// marks the row failed and is not retried, while an inconclusive
// transport error leaves the row pending and surfaces as
// ErrGatewayUnavailable.
func (s *Service) Send(ctx context.Context, input SendInput) (SendOutcome, error) {
	amount, err := money.Parse(input.Amount)
	if err != nil || !amount.IsPositive() {
		return SendOutcome{}, fmt.Errorf("%w: %q", custody.ErrInvalidAmount, input.Amount)
	}

	account, err := s.store.AccountByUser(ctx, input.UserID)
	if err != nil {
		return SendOutcome{}, err
	}
	return s.SendFromAccount(ctx, account, input.ToAddress, amount, input.IdempotencyToken)
}

// SendFromAccount performs the transfer for an already-resolved account.
// The sufficiency check always uses a fresh balance read; cached values
// are never trusted here.
func (s *Service) SendFromAccount(ctx context.Context, account custody.Account, toAddress string, amount money.Amount, idemToken string) (SendOutcome, error) {
	if !amount.IsPositive() {
		return SendOutcome{}, fmt.Errorf("%w: %s", custody.ErrInvalidAmount, amount)
	}
	if strings.TrimSpace(toAddress) == "" {
		return SendOutcome{}, fmt.Errorf("%w: destination address required", custody.ErrInvalidAmount)
	}

	if s.idem != nil && idemToken != "" {
		if outcome, found, err := s.idem.Lookup(ctx, idemToken); err != nil {
			return SendOutcome{}, err
		} else if found {
			return outcome.result()
		}
		reserved, err := s.idem.Reserve(ctx, idemToken)
		if err != nil {
			return SendOutcome{}, err
		}
		if !reserved {
			return SendOutcome{}, fmt.Errorf("%w: duplicate request in flight", custody.ErrConflict)
		}
	}

	outcome, err := s.submit(ctx, account, toAddress, amount)

	if s.idem != nil && idemToken != "" {
		if errors.Is(err, custody.ErrGatewayUnavailable) {
			// Inconclusive: release so a client retry can proceed.
			s.idem.Release(ctx, idemToken)
		} else if outcome.TransactionID != "" {
			s.idem.Record(ctx, idemToken, outcome)
		} else {
			s.idem.Release(ctx, idemToken)
		}
	}
	return outcome, err
}

func (s *Service) submit(ctx context.Context, account custody.Account, toAddress string, amount money.Amount) (SendOutcome, error) {
	balances, err := s.balancesForAccount(ctx, account)
	if err != nil {
		return SendOutcome{}, err
	}
	if amount > balances.Available {
		return SendOutcome{}, fmt.Errorf("%w: requested %s, available %s",
			custody.ErrInsufficientFunds, amount, balances.Available)
	}

	privateKey, err := s.vault.Decrypt(account.EncryptedKey)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("open custody key: %w", err)
	}

	now := time.Now().UTC()
	tx := custody.Transaction{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ToAddress: toAddress,
		Amount:    amount,
		Status:    custody.TxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return SendOutcome{}, err
	}
	s.publish(events.Event{
		Type: events.TransactionCreated, TransactionID: tx.ID,
		AccountID: account.ID, Amount: amount,
	})

	result, err := s.gateway.SendUSDT(ctx, account.Address, privateKey, toAddress, amount)
	if err != nil {
		// Transport-level failure is inconclusive: the row stays pending
		// rather than being marked failed on a timeout alone.
		s.logger.Warn("transfer submission inconclusive",
			"transaction_id", tx.ID, "error", err)
		return SendOutcome{TransactionID: tx.ID, Status: custody.TxPending},
			fmt.Errorf("%w: %v", custody.ErrGatewayUnavailable, err)
	}

	if !result.OK || result.TxID == "" {
		reason := result.Err
		if reason == "" {
			reason = "transfer rejected"
		}
		if err := s.store.MarkFailed(ctx, tx.ID, custody.TxPending, "gateway_rejected", reason); err != nil {
			s.logger.Error("mark transaction failed", "transaction_id", tx.ID, "error", err)
		}
		s.publish(events.Event{
			Type: events.TransactionFailed, TransactionID: tx.ID,
			AccountID: account.ID, Amount: amount, Reason: reason,
		})
		return SendOutcome{TransactionID: tx.ID, Status: custody.TxFailed, FailReason: reason},
			fmt.Errorf("%w: %s", custody.ErrGatewayFailure, reason)
	}

	if err := s.store.MarkBroadcasted(ctx, tx.ID, result.TxID); err != nil {
		return SendOutcome{}, err
	}
	s.publish(events.Event{
		Type: events.TransactionBroadcasted, TransactionID: tx.ID,
		ChainTxID: result.TxID, AccountID: account.ID, Amount: amount,
	})
	s.logger.Info("transfer broadcasted",
		"transaction_id", tx.ID, "chain_txid", result.TxID, "amount", amount.String())

	return SendOutcome{TransactionID: tx.ID, ChainTxID: result.TxID, Status: custody.TxBroadcasted}, nil
}

// TopUpGas sends native TRX from the account so the recipient can pay
// network fees. Gas movements are operational and do not create ledger
// rows.
func (s *Service) TopUpGas(ctx context.Context, account custody.Account, toAddress string, amount money.Amount) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: %s", custody.ErrInvalidAmount, amount)
	}
	privateKey, err := s.vault.Decrypt(account.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("open custody key: %w", err)
	}
	result, err := s.gateway.SendTRX(ctx, account.Address, privateKey, toAddress, amount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", custody.ErrGatewayUnavailable, err)
	}
	if !result.OK || result.TxID == "" {
		reason := result.Err
		if reason == "" {
			reason = "transfer rejected"
		}
		return "", fmt.Errorf("%w: %s", custody.ErrGatewayFailure, reason)
	}
	return result.TxID, nil
}

func (s *Service) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// Transactions lists the user's local ledger records, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int, status custody.TxStatus) ([]custody.Transaction, error) {
	account, err := s.store.AccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.TransactionsByAccount(ctx, account.ID, limit, status)
}

// OnChainItem is one movement from the address's chain history, merged
// across token and native transfers.
type OnChainItem struct {
	TxID      string
	From      string
	To        string
	Currency  string
	Amount    money.Amount
	Direction string
	Timestamp time.Time
	Confirmed bool
}

// OnChainHistory merges USDT and TRX movements for the user's address,
// newest first. direction filters to "in" or "out" when non-empty.
func (s *Service) OnChainHistory(ctx context.Context, userID string, limit int, direction, fingerprint string) ([]OnChainItem, error) {
	account, err := s.store.AccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	perKind := limit/2 + 1

	var items []OnChainItem

	tokenPage, err := s.gateway.TRC20Transfers(ctx, account.Address, perKind, fingerprint)
	if err != nil {
		s.logger.Warn("token history unavailable", "user_id", userID, "error", err)
	} else {
		for _, tr := range tokenPage.Items {
			items = append(items, OnChainItem{
				TxID: tr.TxID, From: tr.From, To: tr.To,
				Currency: "USDT", Amount: tr.Amount,
				Direction: historyDirection(tr.From, account.Address),
				Timestamp: tr.Timestamp, Confirmed: tr.Confirmed,
			})
		}
	}

	nativePage, err := s.gateway.NativeTransactions(ctx, account.Address, perKind, fingerprint)
	if err != nil {
		s.logger.Warn("native history unavailable", "user_id", userID, "error", err)
	} else {
		for _, tr := range nativePage.Items {
			items = append(items, OnChainItem{
				TxID: tr.TxID, From: tr.From, To: tr.To,
				Currency: "TRX", Amount: tr.Amount,
				Direction: historyDirection(tr.From, account.Address),
				Timestamp: tr.Timestamp, Confirmed: true,
			})
		}
	}

	if direction != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.Direction == direction {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func historyDirection(from, own string) string {
	if strings.EqualFold(from, own) {
		return "out"
	}
	return "in"
}
