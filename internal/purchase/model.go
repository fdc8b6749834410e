// Package purchase handles fiat-to-USDT purchases: the user pays fiat
// off-platform, an operator verifies the payment, and the treasury
// releases tokens plus a small TRX deposit for network fees.
package purchase

import (
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Status is the purchase lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Purchase is one fiat-to-token order. Rate and TokenAmount are frozen
// at creation time so the user pays the quoted price, not the price at
// approval time.
type Purchase struct {
	ID          string
	UserID      string
	FiatAmount  money.Amount
	Rate        money.Amount
	TokenAmount money.Amount
	PaymentRef  string
	Status      Status
	DecidedBy   string
	Reason      string
	TxID        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
