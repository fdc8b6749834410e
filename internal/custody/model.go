// Package custody defines the durable ledger for system-held blockchain
// accounts: the accounts themselves, locally tracked transfers and their
// on-chain confirmation status, and interest-bearing stake positions.
package custody

import (
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// AccountRole distinguishes the single treasury account, counterparty for
// every stake and settlement transfer, from ordinary user accounts.
type AccountRole string

const (
	RoleUser     AccountRole = "user"
	RoleTreasury AccountRole = "treasury"
)

// Account is a system-held address/key pair owned by one user. Accounts
// are created once at onboarding and never deleted; an address is never
// reused across accounts.
type Account struct {
	ID           string
	UserID       string
	Address      string
	EncryptedKey string
	Role         AccountRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TxStatus is the lifecycle state of a local transaction record.
// Transitions are strictly forward: pending -> broadcasted -> confirmed
// or failed; pending may also fail directly on explicit rejection.
type TxStatus string

const (
	TxPending     TxStatus = "pending"
	TxBroadcasted TxStatus = "broadcasted"
	TxConfirmed   TxStatus = "confirmed"
	TxFailed      TxStatus = "failed"
)

// Transaction is a locally tracked record of one custodial transfer.
// ChainTxID is set exactly once when the transfer is broadcast; a
// transaction is never re-broadcast after that point.
type Transaction struct {
	ID         string
	AccountID  string
	ToAddress  string
	Amount     money.Amount
	Status     TxStatus
	ChainTxID  string
	FailCode   string
	FailReason string
	Receipt    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StakeStatus is the lifecycle state of a stake position.
type StakeStatus string

const (
	StakeActive StakeStatus = "active"
	StakeClosed StakeStatus = "closed"
)

// Stake is a principal amount moved to the treasury account that accrues
// simple daily interest until closed. Principal is fixed at creation and
// returned in full, plus accrued rewards, on close; closed positions are
// retained as history.
type Stake struct {
	ID             string
	AccountID      string
	Principal      money.Amount
	Accrued        money.Amount
	DailyRateBp    int
	Status         StakeStatus
	StartAt        time.Time
	LastAccrualAt  time.Time
	ClosedAt       *time.Time
	// FundingTxID is the transfer that moved the principal to the
	// treasury; SettlementTxID is the payout recorded on close.
	FundingTxID    string
	SettlementTxID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
