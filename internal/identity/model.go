package identity

import "time"

// Roles. Admins review purchase and withdrawal queues and own the
// treasury wallet reference.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account holder.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash []byte
	BankEntity   string
	BankAccount  string
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
	Name     string
}

// BankDetails is the payout destination for withdrawals.
type BankDetails struct {
	Entity  string
	Account string
}
