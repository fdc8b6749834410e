package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/events"
	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
)

func seedBroadcasted(t *testing.T, store *custody.MemoryStore, chainTxID string) custody.Transaction {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	tx := custody.Transaction{
		ID:        uuid.NewString(),
		AccountID: "acct-1",
		ToAddress: "TDest1",
		Amount:    money.MustParse("10"),
		Status:    custody.TxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := store.MarkBroadcasted(ctx, tx.ID, chainTxID); err != nil {
		t.Fatalf("mark broadcasted: %v", err)
	}
	tx.Status = custody.TxBroadcasted
	tx.ChainTxID = chainTxID
	return tx
}

func TestSweepConfirmsSuccessfulReceipt(t *testing.T) {
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	w := New(store, gateway, nil, DefaultConfig(), logging.Discard())

	tx := seedBroadcasted(t, store, "chain-1")
	raw := json.RawMessage(`{"receipt":{"result":"SUCCESS"}}`)
	gateway.SetReceipt("chain-1", &tron.Receipt{Result: "SUCCESS", Raw: raw})

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, err := store.TransactionByID(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != custody.TxConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if string(got.Receipt) != string(raw) {
		t.Fatalf("stored receipt = %s", got.Receipt)
	}

	// A second sweep finds nothing broadcasted and changes nothing.
	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	again, _ := store.TransactionByID(context.Background(), tx.ID)
	if again.Status != custody.TxConfirmed {
		t.Fatalf("status after second sweep = %s", again.Status)
	}
}

func TestSweepFailsRevertedReceipt(t *testing.T) {
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	bus := events.NewBus()
	failures := make(chan events.Event, 1)
	bus.Subscribe(events.TransactionFailed, func(e events.Event) { failures <- e })
	w := New(store, gateway, bus, DefaultConfig(), logging.Discard())

	tx := seedBroadcasted(t, store, "chain-2")
	gateway.SetReceipt("chain-2", &tron.Receipt{Result: "OUT_OF_ENERGY"})

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, _ := store.TransactionByID(context.Background(), tx.ID)
	if got.Status != custody.TxFailed || got.FailReason != "OUT_OF_ENERGY" {
		t.Fatalf("transaction = %+v", got)
	}

	select {
	case e := <-failures:
		if e.TransactionID != tx.ID {
			t.Fatalf("event for %s, want %s", e.TransactionID, tx.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a failure event")
	}
}

func TestSweepLeavesUnminedAlone(t *testing.T) {
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	w := New(store, gateway, nil, DefaultConfig(), logging.Discard())

	tx := seedBroadcasted(t, store, "chain-3")
	// No receipt registered: the mock reports not-yet-mined.

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := store.TransactionByID(context.Background(), tx.ID)
	if got.Status != custody.TxBroadcasted {
		t.Fatalf("status = %s, want still broadcasted", got.Status)
	}
}

func TestSweepToleratesReceiptErrors(t *testing.T) {
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	w := New(store, gateway, nil, DefaultConfig(), logging.Discard())

	broken := seedBroadcasted(t, store, "chain-broken")
	healthy := seedBroadcasted(t, store, "chain-healthy")
	gateway.FailReceipt("chain-broken", errors.New("bridge timeout"))
	gateway.SetReceipt("chain-healthy", &tron.Receipt{Result: "SUCCESS"})

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	b, _ := store.TransactionByID(context.Background(), broken.ID)
	if b.Status != custody.TxBroadcasted {
		t.Fatalf("broken status = %s, want broadcasted", b.Status)
	}
	h, _ := store.TransactionByID(context.Background(), healthy.ID)
	if h.Status != custody.TxConfirmed {
		t.Fatalf("healthy status = %s, want confirmed", h.Status)
	}
}

func TestStartStop(t *testing.T) {
	store := custody.NewMemoryStore()
	gateway := tron.NewMock()
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	w := New(store, gateway, nil, cfg, logging.Discard())

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Fatal("second start must fail")
	}
	if !w.IsRunning() {
		t.Fatal("expected running")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(); err == nil {
		t.Fatal("second stop must fail")
	}

	// Restart after stop.
	if err := w.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}
