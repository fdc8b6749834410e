// Package tron talks to the external Tron REST bridge that performs
// wallet creation, balance queries, signed transfer submission, and
// receipt/history lookups on the service's behalf.
package tron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Wallet is a freshly provisioned address/key pair.
type Wallet struct {
	Address    string
	PrivateKey string
}

// SendResult is the bridge's answer to a transfer submission. OK false
// with a non-empty Err is an explicit rejection, terminal for the
// transfer; transport-level failures surface as Go errors instead and
// are inconclusive.
type SendResult struct {
	OK    bool
	TxID  string
	Err   string
}

// Receipt is a chain transaction receipt. Raw carries the bridge payload
// verbatim for storage alongside the confirmed transaction.
type Receipt struct {
	Result string
	Raw    json.RawMessage
}

// Succeeded reports whether the receipt records successful execution.
func (r *Receipt) Succeeded() bool { return r != nil && r.Result == "SUCCESS" }

// Failed reports a definitive on-chain failure (a result other than
// SUCCESS). A missing result is treated as not-yet-final.
func (r *Receipt) Failed() bool { return r != nil && r.Result != "" && r.Result != "SUCCESS" }

// TRC20Transfer is one token movement from the history listing.
type TRC20Transfer struct {
	TxID      string
	From      string
	To        string
	Amount    money.Amount
	Timestamp time.Time
	Confirmed bool
}

// NativeTransfer is one TRX movement from the history listing.
type NativeTransfer struct {
	TxID      string
	From      string
	To        string
	Amount    money.Amount
	Timestamp time.Time
}

// TransferPage is a page of token history with the opaque cursor for the
// next page, when the bridge supplies one.
type TransferPage struct {
	Items       []TRC20Transfer
	Fingerprint string
}

// NativePage is a page of native-coin history.
type NativePage struct {
	Items       []NativeTransfer
	Fingerprint string
}

// Gateway is the narrow contract the custody core consumes. Every call
// carries a bounded context; implementations must treat timeouts as
// inconclusive rather than as definitive failure.
type Gateway interface {
	CreateWallet(ctx context.Context) (Wallet, error)
	IsValidAddress(ctx context.Context, address string) (bool, error)
	TRXBalance(ctx context.Context, address string) (money.Amount, error)
	USDTBalance(ctx context.Context, address string) (money.Amount, error)
	SendUSDT(ctx context.Context, from, privateKey, to string, amount money.Amount) (SendResult, error)
	SendTRX(ctx context.Context, from, privateKey, to string, amount money.Amount) (SendResult, error)
	// TransactionInfo returns nil (with a nil error) while the receipt is
	// not yet available.
	TransactionInfo(ctx context.Context, txid string) (*Receipt, error)
	TRC20Transfers(ctx context.Context, address string, limit int, fingerprint string) (TransferPage, error)
	NativeTransactions(ctx context.Context, address string, limit int, fingerprint string) (NativePage, error)
}
