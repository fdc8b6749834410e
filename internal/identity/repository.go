package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound marks a missing user row.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken marks a registration against an existing email.
var ErrEmailTaken = errors.New("email already registered")

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdateBankDetails(ctx context.Context, id string, details BankDetails) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the users table when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS users (
            id            UUID PRIMARY KEY,
            email         TEXT NOT NULL UNIQUE,
            name          TEXT NOT NULL,
            role          TEXT NOT NULL DEFAULT 'user',
            password_hash BYTEA NOT NULL,
            bank_entity   TEXT,
            bank_account  TEXT,
            token_version INT NOT NULL DEFAULT 0,
            created_at    TIMESTAMPTZ NOT NULL
        );`
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate users schema: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, role, password_hash,
        COALESCE(bank_entity, ''), COALESCE(bank_account, ''), token_version, created_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users
        (id, email, name, role, password_hash, bank_entity, bank_account, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
		user.BankEntity, user.BankAccount, user.TokenVersion, user.CreatedAt.UTC())
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
		&user.BankEntity, &user.BankAccount, &user.TokenVersion, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateBankDetails stores the user's payout destination.
func (r *PostgresRepository) UpdateBankDetails(ctx context.Context, id string, details BankDetails) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET bank_entity = $1, bank_account = $2 WHERE id = $3`,
		details.Entity, details.Account, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateTokenVersion bumps the version embedded in issued tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET token_version = $1 WHERE id = $2`, version, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
