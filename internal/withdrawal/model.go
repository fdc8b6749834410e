// Package withdrawal handles USDT-to-fiat cash-outs: tokens move from
// the user's wallet into the treasury up front, and an operator pays the
// quoted fiat to the user's bank account before marking the request done.
package withdrawal

import (
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Status is the withdrawal lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Withdrawal is one cash-out request. The tokens are already in the
// treasury while the row is pending; a rejection refunds them.
type Withdrawal struct {
	ID          string
	UserID      string
	TokenAmount money.Amount
	Rate        money.Amount
	FiatAmount  money.Amount
	BankEntity  string
	BankAccount string
	Status      Status
	DecidedBy   string
	Reason      string
	LockTxID    string
	RefundTxID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
