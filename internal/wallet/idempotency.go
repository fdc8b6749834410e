package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

const (
	transferTokenPrefix = "transfer:v1:"
	transferInProgress  = "__in_progress__"
)

// storedOutcome is the terminal result persisted against a transfer
// token so replays return the original outcome instead of moving money
// twice.
type storedOutcome struct {
	TransactionID string           `json:"transaction_id"`
	ChainTxID     string           `json:"chain_txid,omitempty"`
	Status        custody.TxStatus `json:"status"`
	FailReason    string           `json:"fail_reason,omitempty"`
}

func (o storedOutcome) result() (SendOutcome, error) {
	out := SendOutcome{
		TransactionID: o.TransactionID,
		ChainTxID:     o.ChainTxID,
		Status:        o.Status,
		FailReason:    o.FailReason,
	}
	if o.Status == custody.TxFailed {
		return out, fmt.Errorf("%w: %s", custody.ErrGatewayFailure, o.FailReason)
	}
	return out, nil
}

// IdempotencyStore deduplicates transfer submissions in Redis. A token
// is reserved with SetNX before the gateway call and either replaced
// with the terminal outcome or released when the attempt was
// inconclusive.
type IdempotencyStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdempotencyStore(cache *redis.Client, ttl time.Duration, logger *slog.Logger) *IdempotencyStore {
	return &IdempotencyStore{cache: cache, ttl: ttl, logger: logger}
}

// Lookup returns the stored outcome for the token, if any. An in-flight
// reservation surfaces as ErrConflict so concurrent duplicates cannot
// both submit.
func (s *IdempotencyStore) Lookup(ctx context.Context, token string) (storedOutcome, bool, error) {
	cached, err := s.cache.Get(ctx, transferTokenPrefix+token).Result()
	if err == redis.Nil {
		return storedOutcome{}, false, nil
	}
	if err != nil {
		return storedOutcome{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if cached == transferInProgress {
		return storedOutcome{}, false, fmt.Errorf("%w: duplicate request currently processing", custody.ErrConflict)
	}

	var outcome storedOutcome
	if err := json.Unmarshal([]byte(cached), &outcome); err != nil {
		s.logger.Warn("corrupt idempotency record", "token", token, "error", err)
		return storedOutcome{}, false, fmt.Errorf("%w: unreadable idempotency record", custody.ErrConflict)
	}
	return outcome, true, nil
}

// Reserve claims the token for the caller. A false return means another
// request holds it.
func (s *IdempotencyStore) Reserve(ctx context.Context, token string) (bool, error) {
	ok, err := s.cache.SetNX(ctx, transferTokenPrefix+token, transferInProgress, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency reservation: %w", err)
	}
	return ok, nil
}

// Record replaces the reservation with a terminal outcome.
func (s *IdempotencyStore) Record(ctx context.Context, token string, outcome SendOutcome) {
	payload, err := json.Marshal(storedOutcome{
		TransactionID: outcome.TransactionID,
		ChainTxID:     outcome.ChainTxID,
		Status:        outcome.Status,
		FailReason:    outcome.FailReason,
	})
	if err != nil {
		s.logger.Error("encode idempotency outcome", "token", token, "error", err)
		s.Release(ctx, token)
		return
	}
	if err := s.cache.Set(ctx, transferTokenPrefix+token, payload, s.ttl).Err(); err != nil {
		s.logger.Error("persist idempotency outcome", "token", token, "error", err)
	}
}

// Release drops the reservation so a retry can proceed. Used when the
// attempt ended without a terminal state.
func (s *IdempotencyStore) Release(ctx context.Context, token string) {
	if err := s.cache.Del(ctx, transferTokenPrefix+token).Err(); err != nil {
		s.logger.Warn("release idempotency token", "token", token, "error", err)
	}
}
