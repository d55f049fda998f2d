package core

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound is returned by an AccountStore if no account matches.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned by AccountStore.Create if the username is taken.
	ErrAccountExists = errors.New("account already exists")
)

// AccountStore is the internal identity store.
// Emails are matched case-insensitively; usernames are matched exactly.
type AccountStore interface {
	// FindByUsername returns the account with the given username or ErrAccountNotFound.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail returns the account with the given email or ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Roles returns the current role names of an account.
	Roles(ctx context.Context, accountID string) ([]string, error)

	// Create persists a new account or returns ErrAccountExists.
	Create(ctx context.Context, account NewAccount) (*Account, error)

	// AddRoles assigns roles to an account. Assigning a role twice is a no-op.
	AddRoles(ctx context.Context, accountID string, roles ...string) error

	Close() error
}
