package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

const maxListLimit = 100

// PostgresRepository persists withdrawal requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the withdrawals table when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS withdrawals (
            id           UUID PRIMARY KEY,
            user_id      TEXT NOT NULL,
            token_micro  BIGINT NOT NULL,
            rate_micro   BIGINT NOT NULL,
            fiat_micro   BIGINT NOT NULL,
            bank_entity  TEXT NOT NULL,
            bank_account TEXT NOT NULL,
            status       TEXT NOT NULL,
            decided_by   TEXT,
            reason       TEXT,
            lock_txid    TEXT,
            refund_txid  TEXT,
            created_at   TIMESTAMPTZ NOT NULL,
            updated_at   TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS withdrawals_user ON withdrawals (user_id, created_at);
        CREATE INDEX IF NOT EXISTS withdrawals_status ON withdrawals (status, created_at);`
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate withdrawals schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, w Withdrawal) error {
	_, err := r.db.Exec(ctx, `INSERT INTO withdrawals
        (id, user_id, token_micro, rate_micro, fiat_micro, bank_entity, bank_account, status, decided_by, reason, lock_txid, refund_txid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14)`,
		w.ID, w.UserID, w.TokenAmount.Micros(), w.Rate.Micros(), w.FiatAmount.Micros(),
		w.BankEntity, w.BankAccount, w.Status, w.DecidedBy, w.Reason, w.LockTxID, w.RefundTxID,
		w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

const withdrawalColumns = `id, user_id, token_micro, rate_micro, fiat_micro, bank_entity, bank_account, status,
        COALESCE(decided_by, ''), COALESCE(reason, ''), COALESCE(lock_txid, ''), COALESCE(refund_txid, ''), created_at, updated_at`

func scanWithdrawal(row pgx.Row) (Withdrawal, error) {
	var w Withdrawal
	var token, rate, fiat int64
	if err := row.Scan(&w.ID, &w.UserID, &token, &rate, &fiat, &w.BankEntity, &w.BankAccount, &w.Status,
		&w.DecidedBy, &w.Reason, &w.LockTxID, &w.RefundTxID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrNotFound
		}
		return Withdrawal{}, err
	}
	w.TokenAmount = money.FromMicros(token)
	w.Rate = money.FromMicros(rate)
	w.FiatAmount = money.FromMicros(fiat)
	return w, nil
}

func (r *PostgresRepository) ByID(ctx context.Context, id string) (Withdrawal, error) {
	return scanWithdrawal(r.db.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
}

func (r *PostgresRepository) ByUser(ctx context.Context, userID string, limit int) ([]Withdrawal, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
        WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (r *PostgresRepository) Pending(ctx context.Context, limit int) ([]Withdrawal, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
        WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (r *PostgresRepository) Approve(ctx context.Context, id, decidedBy string, decidedAt time.Time) error {
	return r.transition(ctx, `UPDATE withdrawals
        SET status = $1, decided_by = $2, updated_at = $3
        WHERE id = $4 AND status = $5`, StatusApproved, decidedBy, decidedAt.UTC(), id, StatusPending)
}

func (r *PostgresRepository) Reject(ctx context.Context, id, decidedBy, reason string, decidedAt time.Time) error {
	return r.transition(ctx, `UPDATE withdrawals
        SET status = $1, decided_by = $2, reason = $3, updated_at = $4
        WHERE id = $5 AND status = $6`, StatusRejected, decidedBy, reason, decidedAt.UTC(), id, StatusPending)
}

func (r *PostgresRepository) SetRefundTx(ctx context.Context, id, txID string) error {
	return r.transition(ctx, `UPDATE withdrawals
        SET refund_txid = $1, updated_at = now()
        WHERE id = $2 AND status = $3`, txID, id, StatusRejected)
}

func (r *PostgresRepository) transition(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return custody.ErrConflict
	}
	return nil
}

func collectWithdrawals(rows pgx.Rows) ([]Withdrawal, error) {
	var out []Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
