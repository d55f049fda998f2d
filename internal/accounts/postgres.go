package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/darmiel/sessionbridge/internal/core"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS accounts (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    username text NOT NULL UNIQUE,
    email text NOT NULL,
    password_hash text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_lower_unique
ON accounts (LOWER(email));

CREATE TABLE IF NOT EXISTS account_roles (
    account_id uuid NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    role text NOT NULL,
    PRIMARY KEY (account_id, role)
);
`

// unique_violation
const pqUniqueViolation = "23505"

var _ core.AccountStore = (*PostgresStore)(nil)

// PostgresStore keeps accounts and role assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the account tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*core.Account, error) {
	return s.findOne(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE username = $1
	`, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	return s.findOne(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (*core.Account, error) {
	var acc core.Account
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *PostgresStore) Roles(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role FROM account_roles
		WHERE account_id = $1
		ORDER BY role
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.NormalizeRoles(roles), nil
}

func (s *PostgresStore) Create(ctx context.Context, na core.NewAccount) (*core.Account, error) {
	var acc core.Account
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at
	`, na.Username, strings.ToLower(na.Email), na.PasswordHash).
		Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return nil, core.ErrAccountExists
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *PostgresStore) AddRoles(ctx context.Context, accountID string, roles ...string) error {
	if len(roles) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_roles (account_id, role)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, accountID, pq.Array(core.NormalizeRoles(roles)))

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
		return core.ErrAccountNotFound
	}
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
