package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/keyvault"
	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
)

const testMasterKey = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

func newTestService(t *testing.T) (*Service, *custody.MemoryStore, *tron.Mock) {
	t.Helper()
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	vault, err := keyvault.New(testMasterKey)
	if err != nil {
		t.Fatalf("keyvault: %v", err)
	}
	svc := NewService(store, gateway, vault, nil, nil, logging.Discard())
	return svc, store, gateway
}

func newTestServiceWithRedis(t *testing.T) (*Service, *custody.MemoryStore, *tron.Mock) {
	t.Helper()
	svc, store, gateway := newTestService(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	svc.idem = NewIdempotencyStore(client, 10*time.Minute, logging.Discard())
	return svc, store, gateway
}

func mustCreateAccount(t *testing.T, svc *Service, userID string) custody.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestCreateAccountIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := mustCreateAccount(t, svc, "user-1")
	second := mustCreateAccount(t, svc, "user-1")

	if first.ID != second.ID {
		t.Fatalf("expected same account, got %s and %s", first.ID, second.ID)
	}
	if first.EncryptedKey == "" {
		t.Fatal("expected sealed key on account")
	}
}

func TestBalancesDerivesAvailable(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")

	gateway.SetTRXBalance(account.Address, money.MustParse("12.5"))
	gateway.SetUSDTBalance(account.Address, money.MustParse("1000"))
	store.SeedStake(custody.Stake{
		ID: "st-1", AccountID: account.ID,
		Principal: money.MustParse("300"), Status: custody.StakeActive,
	})
	store.SeedStake(custody.Stake{
		ID: "st-2", AccountID: account.ID,
		Principal: money.MustParse("900"), Status: custody.StakeClosed,
	})

	balances, err := svc.Balances(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if got := balances.Locked; got != money.MustParse("300") {
		t.Fatalf("locked = %s, want 300 (closed stakes must not count)", got)
	}
	if got := balances.Available; got != money.MustParse("700") {
		t.Fatalf("available = %s, want 700", got)
	}
}

func TestBalancesAvailableFloorsAtZero(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")

	gateway.SetUSDTBalance(account.Address, money.MustParse("100"))
	store.SeedStake(custody.Stake{
		ID: "st-1", AccountID: account.ID,
		Principal: money.MustParse("250"), Status: custody.StakeActive,
	})

	balances, err := svc.Balances(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if balances.Available != 0 {
		t.Fatalf("available = %s, want 0", balances.Available)
	}
}

func TestBalancesUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Balances(context.Background(), "ghost"); !errors.Is(err, custody.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestSendHappyPath(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))

	outcome, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", ToAddress: "TDest1", Amount: "120.50",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if outcome.Status != custody.TxBroadcasted {
		t.Fatalf("status = %s, want broadcasted", outcome.Status)
	}
	if outcome.ChainTxID == "" {
		t.Fatal("expected chain txid")
	}

	tx, err := store.TransactionByID(context.Background(), outcome.TransactionID)
	if err != nil {
		t.Fatalf("lookup transaction: %v", err)
	}
	if tx.Status != custody.TxBroadcasted || tx.ChainTxID != outcome.ChainTxID {
		t.Fatalf("persisted tx = %+v", tx)
	}
	if len(gateway.Sends) != 1 || gateway.Sends[0].Amount != money.MustParse("120.50") {
		t.Fatalf("gateway calls = %+v", gateway.Sends)
	}
}

func TestSendRejectsBadAmounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreateAccount(t, svc, "user-1")

	for _, amount := range []string{"", "0", "-5", "abc", "1.1234567"} {
		_, err := svc.Send(context.Background(), SendInput{
			UserID: "user-1", ToAddress: "TDest1", Amount: amount,
		})
		if !errors.Is(err, custody.ErrInvalidAmount) {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestSendInsufficientAgainstLocked(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")

	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))
	store.SeedStake(custody.Stake{
		ID: "st-1", AccountID: account.ID,
		Principal: money.MustParse("450"), Status: custody.StakeActive,
	})

	_, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", ToAddress: "TDest1", Amount: "100",
	})
	if !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(gateway.Sends) != 0 {
		t.Fatal("gateway must not be called on insufficient funds")
	}
}

func TestSendGatewayRejectionMarksFailed(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))
	gateway.QueueSendResult(tron.SendResult{OK: false, Err: "bandwidth exhausted"})

	outcome, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", ToAddress: "TDest1", Amount: "10",
	})
	if !errors.Is(err, custody.ErrGatewayFailure) {
		t.Fatalf("expected ErrGatewayFailure, got %v", err)
	}
	tx, err := store.TransactionByID(context.Background(), outcome.TransactionID)
	if err != nil {
		t.Fatalf("lookup transaction: %v", err)
	}
	if tx.Status != custody.TxFailed || tx.FailReason != "bandwidth exhausted" {
		t.Fatalf("persisted tx = %+v", tx)
	}
}

func TestSendTransportErrorLeavesPending(t *testing.T) {
	svc, store, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))
	gateway.FailSends(errors.New("connection reset"))

	outcome, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", ToAddress: "TDest1", Amount: "10",
	})
	if !errors.Is(err, custody.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	tx, err := store.TransactionByID(context.Background(), outcome.TransactionID)
	if err != nil {
		t.Fatalf("lookup transaction: %v", err)
	}
	if tx.Status != custody.TxPending {
		t.Fatalf("status = %s, want pending after inconclusive submit", tx.Status)
	}
}

func TestSendIdempotencyReplaysOutcome(t *testing.T) {
	svc, _, gateway := newTestServiceWithRedis(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))

	input := SendInput{UserID: "user-1", ToAddress: "TDest1", Amount: "25", IdempotencyToken: "tok-1"}

	first, err := svc.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	// Keying is by token alone; a retry with a different amount still
	// yields the stored outcome.
	retry := input
	retry.Amount = "99"
	second, err := svc.Send(context.Background(), retry)
	if err != nil {
		t.Fatalf("replay send: %v", err)
	}

	if first.TransactionID != second.TransactionID || first.ChainTxID != second.ChainTxID {
		t.Fatalf("replay returned different outcome: %+v vs %+v", first, second)
	}
	if len(gateway.Sends) != 1 {
		t.Fatalf("gateway called %d times, want 1", len(gateway.Sends))
	}
}

func TestSendIdempotencyReleasesOnInconclusive(t *testing.T) {
	svc, _, gateway := newTestServiceWithRedis(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("500"))
	gateway.FailSends(errors.New("timeout"))

	input := SendInput{UserID: "user-1", ToAddress: "TDest1", Amount: "25", IdempotencyToken: "tok-2"}
	if _, err := svc.Send(context.Background(), input); !errors.Is(err, custody.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	gateway.FailSends(nil)
	outcome, err := svc.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("retry after inconclusive: %v", err)
	}
	if outcome.Status != custody.TxBroadcasted {
		t.Fatalf("retry status = %s, want broadcasted", outcome.Status)
	}
}

func TestTransactionsFilterAndOrder(t *testing.T) {
	svc, _, gateway := newTestService(t)
	account := mustCreateAccount(t, svc, "user-1")
	gateway.SetUSDTBalance(account.Address, money.MustParse("1000"))

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(context.Background(), SendInput{
			UserID: "user-1", ToAddress: "TDest1", Amount: "1",
		}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	gateway.QueueSendResult(tron.SendResult{OK: false, Err: "rejected"})
	svc.Send(context.Background(), SendInput{UserID: "user-1", ToAddress: "TDest1", Amount: "1"})

	all, err := svc.Transactions(context.Background(), "user-1", 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d transactions, want 4", len(all))
	}

	failed, err := svc.Transactions(context.Background(), "user-1", 10, custody.TxFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("got %d failed transactions, want 1", len(failed))
	}
}
