package purchase

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

// PostgresRepository persists purchase orders in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the purchases table when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS purchases (
            id           UUID PRIMARY KEY,
            user_id      TEXT NOT NULL,
            fiat_micro   BIGINT NOT NULL,
            rate_micro   BIGINT NOT NULL,
            token_micro  BIGINT NOT NULL,
            payment_ref  TEXT NOT NULL,
            status       TEXT NOT NULL,
            decided_by   TEXT,
            reason       TEXT,
            txid         TEXT,
            created_at   TIMESTAMPTZ NOT NULL,
            updated_at   TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS purchases_user ON purchases (user_id, created_at);
        CREATE INDEX IF NOT EXISTS purchases_status ON purchases (status, created_at);`
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate purchases schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Purchase) error {
	_, err := r.db.Exec(ctx, `INSERT INTO purchases
        (id, user_id, fiat_micro, rate_micro, token_micro, payment_ref, status, decided_by, reason, txid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)`,
		p.ID, p.UserID, p.FiatAmount.Micros(), p.Rate.Micros(), p.TokenAmount.Micros(),
		p.PaymentRef, p.Status, p.DecidedBy, p.Reason, p.TxID, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

const purchaseColumns = `id, user_id, fiat_micro, rate_micro, token_micro, payment_ref, status,
        COALESCE(decided_by, ''), COALESCE(reason, ''), COALESCE(txid, ''), created_at, updated_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var fiat, rate, token int64
	if err := row.Scan(&p.ID, &p.UserID, &fiat, &rate, &token, &p.PaymentRef, &p.Status,
		&p.DecidedBy, &p.Reason, &p.TxID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrNotFound
		}
		return Purchase{}, err
	}
	p.FiatAmount = money.FromMicros(fiat)
	p.Rate = money.FromMicros(rate)
	p.TokenAmount = money.FromMicros(token)
	return p, nil
}

func (r *PostgresRepository) ByID(ctx context.Context, id string) (Purchase, error) {
	return scanPurchase(r.db.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
}

func (r *PostgresRepository) ByUser(ctx context.Context, userID string, limit int) ([]Purchase, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
        WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *PostgresRepository) Pending(ctx context.Context, limit int) ([]Purchase, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
        WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *PostgresRepository) Approve(ctx context.Context, id, decidedBy string, decidedAt time.Time) error {
	return r.transition(ctx, `UPDATE purchases
        SET status = $1, decided_by = $2, updated_at = $3
        WHERE id = $4 AND status = $5`, StatusApproved, decidedBy, decidedAt.UTC(), id, StatusPending)
}

func (r *PostgresRepository) Reject(ctx context.Context, id, decidedBy, reason string, decidedAt time.Time) error {
	return r.transition(ctx, `UPDATE purchases
        SET status = $1, decided_by = $2, reason = $3, updated_at = $4
        WHERE id = $5 AND status = $6`, StatusRejected, decidedBy, reason, decidedAt.UTC(), id, StatusPending)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.transition(ctx, `UPDATE purchases
        SET status = $1, reason = $2, updated_at = now()
        WHERE id = $3 AND status = $4`, StatusFailed, reason, id, StatusApproved)
}

func (r *PostgresRepository) SetSettlementTx(ctx context.Context, id, txID string) error {
	return r.transition(ctx, `UPDATE purchases
        SET txid = $1, updated_at = now()
        WHERE id = $2 AND status = $3`, txID, id, StatusApproved)
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

func collectPurchases(rows pgx.Rows) ([]Purchase, error) {
	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
