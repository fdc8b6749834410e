package custody

import (
	"context"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Store is the durable backend for custody records. State-changing
// transaction and stake updates are conditional on the row still being in
// the expected prior state; a write that finds it elsewhere returns
// ErrConflict rather than applying, so concurrent callers cannot
// double-apply a transition.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	AccountByUser(ctx context.Context, userID string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	// TreasuryAccount returns the single account carrying RoleTreasury.
	TreasuryAccount(ctx context.Context) (Account, error)

	CreateTransaction(ctx context.Context, tx Transaction) error
	TransactionByID(ctx context.Context, id string) (Transaction, error)
	// TransactionsByAccount lists newest first, optionally filtered by
	// status; limit is capped by the implementation.
	TransactionsByAccount(ctx context.Context, accountID string, limit int, status TxStatus) ([]Transaction, error)
	// BroadcastedTransactions lists oldest first for the watcher batch.
	BroadcastedTransactions(ctx context.Context, limit int) ([]Transaction, error)

	// MarkBroadcasted moves pending -> broadcasted, recording the chain
	// transaction id exactly once.
	MarkBroadcasted(ctx context.Context, id, chainTxID string) error
	// MarkFailed moves from the given prior status to failed.
	MarkFailed(ctx context.Context, id string, from TxStatus, code, reason string) error
	// MarkConfirmed moves broadcasted -> confirmed, storing the raw receipt.
	MarkConfirmed(ctx context.Context, id string, receipt []byte) error

	CreateStake(ctx context.Context, stake Stake) error
	StakeByID(ctx context.Context, id string) (Stake, error)
	StakesByAccount(ctx context.Context, accountID string) ([]Stake, error)
	ActiveStakesByAccount(ctx context.Context, accountID string) ([]Stake, error)
	// UpdateStakeAccrual persists a new accrued total and accrual
	// timestamp for an active stake.
	UpdateStakeAccrual(ctx context.Context, id string, accrued money.Amount, lastAccrual time.Time) error
	// CloseStake moves active -> closed, recording the settlement
	// transaction that paid the holder out.
	CloseStake(ctx context.Context, id, settlementTxID string, closedAt time.Time) error
}
