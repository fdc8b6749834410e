package purchase

import (
	"context"
	"time"
)

// Repository persists purchase orders. Decision transitions are
// conditional on the row still being pending; a row found elsewhere
// returns custody.ErrConflict.
type Repository interface {
	Create(ctx context.Context, p Purchase) error
	ByID(ctx context.Context, id string) (Purchase, error)
	ByUser(ctx context.Context, userID string, limit int) ([]Purchase, error)
	Pending(ctx context.Context, limit int) ([]Purchase, error)
	// Approve moves pending -> approved, recording the deciding operator.
	Approve(ctx context.Context, id, decidedBy string, decidedAt time.Time) error
	// Reject moves pending -> rejected with a reason.
	Reject(ctx context.Context, id, decidedBy, reason string, decidedAt time.Time) error
	// MarkFailed moves approved -> failed when the token release could
	// not complete.
	MarkFailed(ctx context.Context, id, reason string) error
	// SetSettlementTx records the transfer that released the tokens.
	SetSettlementTx(ctx context.Context, id, txID string) error
}
