package withdrawal

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a missing withdrawal request.
var ErrNotFound = errors.New("withdrawal not found")

// Repository persists withdrawal requests. Decision transitions are
// conditional on the row still being pending; a row found elsewhere
// returns custody.ErrConflict.
type Repository interface {
	Create(ctx context.Context, w Withdrawal) error
	ByID(ctx context.Context, id string) (Withdrawal, error)
	ByUser(ctx context.Context, userID string, limit int) ([]Withdrawal, error)
	Pending(ctx context.Context, limit int) ([]Withdrawal, error)
	// Approve moves pending -> approved once the fiat payout was made.
	Approve(ctx context.Context, id, decidedBy string, decidedAt time.Time) error
	// Reject moves pending -> rejected with a reason.
	Reject(ctx context.Context, id, decidedBy, reason string, decidedAt time.Time) error
	// SetRefundTx records the transfer that returned the locked tokens.
	SetRefundTx(ctx context.Context, id, txID string) error
}
