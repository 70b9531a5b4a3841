package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regbridge/pkg/platform/sentinel"
)

// PostgresStore persists account records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a store to the database behind dsn.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (tests).
func NewPostgresFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the accounts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByAccountID(ctx context.Context, accountID string) (Account, error) {
	const query = `
		SELECT account_id, status, created_at, updated_at
		FROM accounts
		WHERE account_id = $1
	`
	var account Account
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&account.AccountID,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Account{}, fmt.Errorf("find account %s: %w", accountID, err)
	}
	return account, nil
}

// Upsert inserts or updates a record. Used by operator tooling and tests; the
// approval path never writes.
func (s *PostgresStore) Upsert(ctx context.Context, account Account) error {
	const query = `
		INSERT INTO accounts (account_id, status)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET
			status     = EXCLUDED.status,
			updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, account.AccountID, account.Status); err != nil {
		return fmt.Errorf("upsert account %s: %w", account.AccountID, err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
