package custody

import "errors"

var (
	// ErrInvalidAmount occurs when a caller supplies a non-positive amount
	// or one not expressible at six-decimal precision.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAccountNotFound indicates no custody account exists for the
	// given identifier.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound indicates an unknown transaction identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStakeNotFound indicates an unknown, closed, or foreign stake.
	ErrStakeNotFound = errors.New("stake not found")

	// ErrInsufficientFunds occurs when the available balance cannot cover
	// a requested transfer or stake principal.
	ErrInsufficientFunds = errors.New("insufficient available funds")

	// ErrConflict indicates a conditional write found the row no longer in
	// the expected state, e.g. two watchers racing a transition or an
	// admin approving a request that is not pending.
	ErrConflict = errors.New("state conflict")

	// ErrGatewayFailure is an explicit rejection from the blockchain
	// gateway. The transfer is terminal and is not retried.
	ErrGatewayFailure = errors.New("gateway rejected transfer")

	// ErrGatewayUnavailable is an inconclusive gateway outcome (network
	// error or timeout). It never marks a transfer failed by itself.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrIntegrity signals a violated data invariant, such as an
	// impossible accrued amount. Operations fail closed and move no funds.
	ErrIntegrity = errors.New("data integrity violation")
)
