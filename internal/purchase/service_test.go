package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/keyvault"
	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
	"github.com/Shiwasmii/CunaPay.Api/internal/wallet"
)

const testMasterKey = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

type fixedRates struct{ buy money.Amount }

func (r fixedRates) BuyRate(context.Context) money.Amount { return r.buy }

type fixture struct {
	service  *Service
	repo     *MemoryRepository
	store    *custody.MemoryStore
	gateway  *tron.Mock
	treasury custody.Account
	account  custody.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	vault, err := keyvault.New(testMasterKey)
	if err != nil {
		t.Fatalf("keyvault: %v", err)
	}

	mover := wallet.NewService(store, gateway, vault, nil, nil, logging.Discard())
	resolver := custody.NewTreasuryResolver(store, mover, vault, "admin")
	repo := NewMemoryRepository()
	svc := NewService(repo, store, fixedRates{buy: money.MustParse("40")}, mover, resolver, DefaultConfig(), logging.Discard())

	account, err := mover.CreateAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	treasury, err := resolver.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve treasury: %v", err)
	}
	return &fixture{service: svc, repo: repo, store: store, gateway: gateway, treasury: treasury, account: account}
}

func TestCreateFreezesQuote(t *testing.T) {
	f := newFixture(t)

	p, err := f.service.Create(context.Background(), CreateInput{
		UserID: "user-1", FiatAmount: "400", PaymentRef: "transfer-123",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}
	if p.Rate != money.MustParse("40") {
		t.Fatalf("rate = %s, want 40", p.Rate)
	}
	if p.TokenAmount != money.MustParse("10") {
		t.Fatalf("tokens = %s, want 10", p.TokenAmount)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := []CreateInput{
		{UserID: "user-1", FiatAmount: "", PaymentRef: "r"},
		{UserID: "user-1", FiatAmount: "-5", PaymentRef: "r"},
		{UserID: "user-1", FiatAmount: "0.5", PaymentRef: "r"},
		{UserID: "user-1", FiatAmount: "100", PaymentRef: ""},
	}
	for _, input := range cases {
		if _, err := f.service.Create(context.Background(), input); !errors.Is(err, custody.ErrInvalidAmount) {
			t.Fatalf("input %+v: expected ErrInvalidAmount, got %v", input, err)
		}
	}

	if _, err := f.service.Create(context.Background(), CreateInput{
		UserID: "ghost", FiatAmount: "100", PaymentRef: "r",
	}); !errors.Is(err, custody.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestApproveReleasesTokensAndGas(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetUSDTBalance(f.treasury.Address, money.MustParse("100000"))

	p, err := f.service.Create(context.Background(), CreateInput{
		UserID: "user-1", FiatAmount: "400", PaymentRef: "transfer-123",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := f.service.Approve(context.Background(), "operator-1", p.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved || approved.TxID == "" {
		t.Fatalf("approved = %+v", approved)
	}
	if approved.DecidedBy != "operator-1" {
		t.Fatalf("decided by %s", approved.DecidedBy)
	}

	if len(f.gateway.Sends) != 2 {
		t.Fatalf("gateway calls = %d, want token release plus gas top-up", len(f.gateway.Sends))
	}
	tokens := f.gateway.Sends[0]
	if tokens.Kind != "usdt" || tokens.From != f.treasury.Address || tokens.To != f.account.Address || tokens.Amount != money.MustParse("10") {
		t.Fatalf("token release = %+v", tokens)
	}
	gas := f.gateway.Sends[1]
	if gas.Kind != "trx" || gas.Amount != money.MustParse("1") {
		t.Fatalf("gas top-up = %+v", gas)
	}
}

func TestApproveIsSingleShot(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetUSDTBalance(f.treasury.Address, money.MustParse("100000"))

	p, _ := f.service.Create(context.Background(), CreateInput{
		UserID: "user-1", FiatAmount: "400", PaymentRef: "r",
	})
	if _, err := f.service.Approve(context.Background(), "op-1", p.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.service.Approve(context.Background(), "op-2", p.ID); !errors.Is(err, custody.ErrConflict) {
		t.Fatalf("second approve: expected ErrConflict, got %v", err)
	}
	sent := 0
	for _, call := range f.gateway.Sends {
		if call.Kind == "usdt" {
			sent++
		}
	}
	if sent != 1 {
		t.Fatalf("tokens released %d times, want 1", sent)
	}
}

func TestApproveMarksFailedOnEmptyTreasury(t *testing.T) {
	f := newFixture(t)
	// Treasury balance left at zero.

	p, _ := f.service.Create(context.Background(), CreateInput{
		UserID: "user-1", FiatAmount: "400", PaymentRef: "r",
	})
	if _, err := f.service.Approve(context.Background(), "op-1", p.ID); !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	failed, err := f.repo.ByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
}

func TestRejectKeepsTokens(t *testing.T) {
	f := newFixture(t)

	p, _ := f.service.Create(context.Background(), CreateInput{
		UserID: "user-1", FiatAmount: "100", PaymentRef: "r",
	})
	rejected, err := f.service.Reject(context.Background(), "op-1", p.ID, "payment never arrived")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.Reason != "payment never arrived" {
		t.Fatalf("rejected = %+v", rejected)
	}
	if len(f.gateway.Sends) != 0 {
		t.Fatal("no transfer may happen on rejection")
	}

	if _, err := f.service.Approve(context.Background(), "op-2", p.ID); !errors.Is(err, custody.ErrConflict) {
		t.Fatalf("approve after reject: expected ErrConflict, got %v", err)
	}
}
