// Package watcher reconciles broadcasted transactions against the chain.
// It polls receipts for in-flight transfers and drives each row to its
// terminal state exactly once; a missing or unreadable receipt leaves
// the row untouched for the next sweep.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/events"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
)

// Config tunes the sweep cadence and batch size.
type Config struct {
	Interval  time.Duration
	BatchSize int
	// SweepTimeout bounds one full sweep.
	SweepTimeout time.Duration
}

// DefaultConfig mirrors the production cadence.
func DefaultConfig() Config {
	return Config{
		Interval:     8 * time.Second,
		BatchSize:    25,
		SweepTimeout: 30 * time.Second,
	}
}

// Watcher is the background confirmation loop.
type Watcher struct {
	store   custody.Store
	gateway tron.Gateway
	bus     *events.Bus
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(store custody.Store, gateway tron.Gateway, bus *events.Bus, cfg Config, logger *slog.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = DefaultConfig().SweepTimeout
	}
	return &Watcher{
		store:    store,
		gateway:  gateway,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. Starting a running watcher is an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("confirmation watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("confirmation watcher started",
		"interval", w.cfg.Interval.String(), "batch_size", w.cfg.BatchSize)

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("confirmation watcher not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("confirmation watcher stopped")
	return nil
}

// IsRunning reports whether the loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.sweepWithTimeout()

	for {
		select {
		case <-ticker.C:
			w.sweepWithTimeout()
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) sweepWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SweepTimeout)
	defer cancel()
	if err := w.Sweep(ctx); err != nil {
		w.logger.Error("confirmation sweep failed", "error", err)
	}
}

// Sweep processes one batch of broadcasted transactions, oldest first.
// Each row is handled independently; one bad receipt does not stall the
// rest of the batch.
func (w *Watcher) Sweep(ctx context.Context) error {
	batch, err := w.store.BroadcastedTransactions(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load broadcasted batch: %w", err)
	}

	for _, tx := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.reconcile(ctx, tx)
	}
	return nil
}

func (w *Watcher) reconcile(ctx context.Context, tx custody.Transaction) {
	receipt, err := w.gateway.TransactionInfo(ctx, tx.ChainTxID)
	if err != nil {
		w.logger.Warn("receipt lookup failed",
			"transaction_id", tx.ID, "chain_txid", tx.ChainTxID, "error", err)
		return
	}
	if receipt == nil {
		// Not yet mined; try again next sweep.
		return
	}

	switch {
	case receipt.Succeeded():
		if err := w.store.MarkConfirmed(ctx, tx.ID, receipt.Raw); err != nil {
			if !errors.Is(err, custody.ErrConflict) {
				w.logger.Error("confirm transaction",
					"transaction_id", tx.ID, "error", err)
			}
			return
		}
		w.publish(events.Event{
			Type: events.TransactionConfirmed, TransactionID: tx.ID,
			ChainTxID: tx.ChainTxID, AccountID: tx.AccountID, Amount: tx.Amount,
		})
		w.logger.Info("transaction confirmed",
			"transaction_id", tx.ID, "chain_txid", tx.ChainTxID)

	case receipt.Failed():
		reason := receipt.Result
		if err := w.store.MarkFailed(ctx, tx.ID, custody.TxBroadcasted, "chain_reverted", reason); err != nil {
			if !errors.Is(err, custody.ErrConflict) {
				w.logger.Error("fail transaction",
					"transaction_id", tx.ID, "error", err)
			}
			return
		}
		w.publish(events.Event{
			Type: events.TransactionFailed, TransactionID: tx.ID,
			ChainTxID: tx.ChainTxID, AccountID: tx.AccountID,
			Amount: tx.Amount, Reason: reason,
		})
		w.logger.Warn("transaction reverted on chain",
			"transaction_id", tx.ID, "chain_txid", tx.ChainTxID, "result", reason)

	default:
		// Receipt present but outcome undetermined; leave for next sweep.
	}
}

func (w *Watcher) publish(e events.Event) {
	if w.bus != nil {
		w.bus.Publish(e)
	}
}
