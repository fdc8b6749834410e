package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

const maxListLimit = 100

// PostgresStore persists custody records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the custody tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS custody_accounts (
            id            UUID PRIMARY KEY,
            user_id       TEXT NOT NULL UNIQUE,
            address       TEXT NOT NULL UNIQUE,
            encrypted_key TEXT NOT NULL,
            role          TEXT NOT NULL DEFAULT 'user',
            created_at    TIMESTAMPTZ NOT NULL,
            updated_at    TIMESTAMPTZ NOT NULL
        );
        CREATE UNIQUE INDEX IF NOT EXISTS custody_accounts_treasury
            ON custody_accounts ((role = 'treasury')) WHERE role = 'treasury';

        CREATE TABLE IF NOT EXISTS custody_transactions (
            id           UUID PRIMARY KEY,
            account_id   UUID NOT NULL REFERENCES custody_accounts(id),
            to_address   TEXT NOT NULL,
            amount_micro BIGINT NOT NULL,
            status       TEXT NOT NULL,
            chain_txid   TEXT,
            fail_code    TEXT,
            fail_reason  TEXT,
            receipt      JSONB,
            created_at   TIMESTAMPTZ NOT NULL,
            updated_at   TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS custody_transactions_status
            ON custody_transactions (status, created_at);

        CREATE TABLE IF NOT EXISTS stakes (
            id             UUID PRIMARY KEY,
            account_id     UUID NOT NULL REFERENCES custody_accounts(id),
            principal_micro BIGINT NOT NULL,
            accrued_micro  BIGINT NOT NULL,
            daily_rate_bp  INT NOT NULL,
            status         TEXT NOT NULL,
            start_at       TIMESTAMPTZ NOT NULL,
            last_accrual_at TIMESTAMPTZ NOT NULL,
            closed_at      TIMESTAMPTZ,
            funding_txid   TEXT,
            settlement_txid TEXT,
            created_at     TIMESTAMPTZ NOT NULL,
            updated_at     TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS stakes_account_status
            ON stakes (account_id, status);`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate custody schema: %w", err)
	}
	return nil
}

// CreateAccount inserts a custody account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, a Account) error {
	_, err := s.db.Exec(ctx, `INSERT INTO custody_accounts
        (id, user_id, address, encrypted_key, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.Address, a.EncryptedKey, a.Role, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return err
}

const accountColumns = `id, user_id, address, encrypted_key, role, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Address, &a.EncryptedKey, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// AccountByUser fetches the account owned by the given user.
func (s *PostgresStore) AccountByUser(ctx context.Context, userID string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM custody_accounts WHERE user_id = $1`, userID))
}

// AccountByID fetches an account by identifier.
func (s *PostgresStore) AccountByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM custody_accounts WHERE id = $1`, id))
}

// TreasuryAccount fetches the single treasury-role account.
func (s *PostgresStore) TreasuryAccount(ctx context.Context) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM custody_accounts WHERE role = $1`, RoleTreasury))
}

// CreateTransaction inserts a transaction row.
func (s *PostgresStore) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := s.db.Exec(ctx, `INSERT INTO custody_transactions
        (id, account_id, to_address, amount_micro, status, chain_txid, fail_code, fail_reason, receipt, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)`,
		t.ID, t.AccountID, t.ToAddress, t.Amount.Micros(), t.Status,
		t.ChainTxID, t.FailCode, t.FailReason, t.Receipt, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	return err
}

const txColumns = `id, account_id, to_address, amount_micro, status,
        COALESCE(chain_txid, ''), COALESCE(fail_code, ''), COALESCE(fail_reason, ''), receipt, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var micros int64
	if err := row.Scan(&t.ID, &t.AccountID, &t.ToAddress, &micros, &t.Status,
		&t.ChainTxID, &t.FailCode, &t.FailReason, &t.Receipt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	t.Amount = money.FromMicros(micros)
	return t, nil
}

// TransactionByID fetches a transaction by identifier.
func (s *PostgresStore) TransactionByID(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM custody_transactions WHERE id = $1`, id))
}

// TransactionsByAccount lists an account's transactions, newest first.
func (s *PostgresStore) TransactionsByAccount(ctx context.Context, accountID string, limit int, status TxStatus) ([]Transaction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query := `SELECT ` + txColumns + ` FROM custody_transactions WHERE account_id = $1`
	args := []any{accountID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// BroadcastedTransactions lists broadcast-pending transactions, oldest first.
func (s *PostgresStore) BroadcastedTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM custody_transactions
        WHERE status = $1 AND chain_txid IS NOT NULL
        ORDER BY created_at ASC LIMIT $2`, TxBroadcasted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkBroadcasted conditionally promotes pending -> broadcasted.
func (s *PostgresStore) MarkBroadcasted(ctx context.Context, id, chainTxID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE custody_transactions
        SET status = $1, chain_txid = $2, updated_at = now()
        WHERE id = $3 AND status = $4`, TxBroadcasted, chainTxID, id, TxPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkFailed conditionally moves a transaction from the expected prior
// status to failed, capturing the failure code and reason.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, from TxStatus, code, reason string) error {
	tag, err := s.db.Exec(ctx, `UPDATE custody_transactions
        SET status = $1, fail_code = NULLIF($2, ''), fail_reason = NULLIF($3, ''), updated_at = now()
        WHERE id = $4 AND status = $5`, TxFailed, code, reason, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkConfirmed conditionally promotes broadcasted -> confirmed with the
// raw chain receipt.
func (s *PostgresStore) MarkConfirmed(ctx context.Context, id string, receipt []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE custody_transactions
        SET status = $1, receipt = $2, updated_at = now()
        WHERE id = $3 AND status = $4`, TxConfirmed, receipt, id, TxBroadcasted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CreateStake inserts a stake row.
func (s *PostgresStore) CreateStake(ctx context.Context, st Stake) error {
	_, err := s.db.Exec(ctx, `INSERT INTO stakes
        (id, account_id, principal_micro, accrued_micro, daily_rate_bp, status,
         start_at, last_accrual_at, closed_at, funding_txid, settlement_txid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13)`,
		st.ID, st.AccountID, st.Principal.Micros(), st.Accrued.Micros(), st.DailyRateBp, st.Status,
		st.StartAt.UTC(), st.LastAccrualAt.UTC(), st.ClosedAt, st.FundingTxID, st.SettlementTxID,
		st.CreatedAt.UTC(), st.UpdatedAt.UTC())
	return err
}

const stakeColumns = `id, account_id, principal_micro, accrued_micro, daily_rate_bp, status,
        start_at, last_accrual_at, closed_at, COALESCE(funding_txid, ''), COALESCE(settlement_txid, ''), created_at, updated_at`

func scanStake(row pgx.Row) (Stake, error) {
	var st Stake
	var principal, accrued int64
	if err := row.Scan(&st.ID, &st.AccountID, &principal, &accrued, &st.DailyRateBp, &st.Status,
		&st.StartAt, &st.LastAccrualAt, &st.ClosedAt, &st.FundingTxID, &st.SettlementTxID, &st.CreatedAt, &st.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stake{}, ErrStakeNotFound
		}
		return Stake{}, err
	}
	st.Principal = money.FromMicros(principal)
	st.Accrued = money.FromMicros(accrued)
	return st, nil
}

// StakeByID fetches a stake by identifier.
func (s *PostgresStore) StakeByID(ctx context.Context, id string) (Stake, error) {
	return scanStake(s.db.QueryRow(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE id = $1`, id))
}

// StakesByAccount lists all of an account's stakes, newest first.
func (s *PostgresStore) StakesByAccount(ctx context.Context, accountID string) ([]Stake, error) {
	rows, err := s.db.Query(ctx, `SELECT `+stakeColumns+` FROM stakes
        WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStakes(rows)
}

// ActiveStakesByAccount lists only active stakes for lock calculations.
func (s *PostgresStore) ActiveStakesByAccount(ctx context.Context, accountID string) ([]Stake, error) {
	rows, err := s.db.Query(ctx, `SELECT `+stakeColumns+` FROM stakes
        WHERE account_id = $1 AND status = $2 ORDER BY created_at DESC`, accountID, StakeActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStakes(rows)
}

func collectStakes(rows pgx.Rows) ([]Stake, error) {
	var out []Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpdateStakeAccrual persists the accrued total for an active stake.
func (s *PostgresStore) UpdateStakeAccrual(ctx context.Context, id string, accrued money.Amount, lastAccrual time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE stakes
        SET accrued_micro = $1, last_accrual_at = $2, updated_at = now()
        WHERE id = $3 AND status = $4`, accrued.Micros(), lastAccrual.UTC(), id, StakeActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CloseStake conditionally moves a stake from active to closed.
func (s *PostgresStore) CloseStake(ctx context.Context, id, settlementTxID string, closedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE stakes
        SET status = $1, settlement_txid = $2, closed_at = $3, updated_at = now()
        WHERE id = $4 AND status = $5`, StakeClosed, settlementTxID, closedAt.UTC(), id, StakeActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
