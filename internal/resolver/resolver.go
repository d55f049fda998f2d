// Package resolver maps verified external identities to internal accounts.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darmiel/sessionbridge/internal/core"
)

// Resolver looks up the internal account for a verified email and reads its roles.
// It never creates accounts.
type Resolver struct {
	store core.AccountStore
}

func New(store core.AccountStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the username and current roles of the account owning email.
// If no account matches, the error is core.ErrIdentityNotFound; store failures are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, email string) (*core.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, core.AuthErrorf(core.KindIdentityNotFound, "empty email")
	}

	account, err := r.store.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrAccountNotFound) {
		return nil, core.NewAuthError(core.KindIdentityNotFound, fmt.Errorf("no account for %q", email))
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	roles, err := r.store.Roles(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("reading roles of %q: %w", account.Username, err)
	}

	return &core.Identity{
		Username: account.Username,
		Roles:    core.NormalizeRoles(roles),
	}, nil
}
