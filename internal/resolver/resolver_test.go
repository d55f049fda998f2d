package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/sessionbridge/internal/accounts"
	"github.com/darmiel/sessionbridge/internal/core"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewInMemoryStore()

	alice, err := store.Create(ctx, core.NewAccount{Username: "alice", Email: "Alice@Example.com"})
	require.NoError(t, err)
	require.NoError(t, store.AddRoles(ctx, alice.ID, core.RoleUser, core.RoleAdmin, core.RoleUser))

	_, err = store.Create(ctx, core.NewAccount{Username: "norole", Email: "norole@example.com"})
	require.NoError(t, err)

	r := New(store)

	tests := []struct {
		name      string
		email     string
		wantName  string
		wantRoles []string
		wantKind  core.ErrorKind
	}{
		{
			name:      "Exact Match",
			email:     "alice@example.com",
			wantName:  "alice",
			wantRoles: []string{"Admin", "User"},
		},
		{
			name:      "Case Insensitive",
			email:     "ALICE@example.COM",
			wantName:  "alice",
			wantRoles: []string{"Admin", "User"},
		},
		{
			name:      "No Roles",
			email:     "norole@example.com",
			wantName:  "norole",
			wantRoles: []string{},
		},
		{
			name:     "Unknown",
			email:    "nobody@example.com",
			wantKind: core.KindIdentityNotFound,
		},
		{
			name:     "Empty",
			email:    "",
			wantKind: core.KindIdentityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.Resolve(ctx, tt.email)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, core.KindOf(err))
				assert.Nil(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, id.Username)
			if diff := cmp.Diff(tt.wantRoles, id.Roles); diff != "" {
				t.Errorf("roles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_ReadsRolesFresh(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewInMemoryStore()
	acc, err := store.Create(ctx, core.NewAccount{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	r := New(store)
	id, err := r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, id.Roles)

	require.NoError(t, store.AddRoles(ctx, acc.ID, core.RoleAdmin))
	id, err = r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{core.RoleAdmin}, id.Roles)
}

type failingStore struct {
	core.AccountStore
}

func (failingStore) FindByEmail(context.Context, string) (*core.Account, error) {
	return nil, errors.New("connection refused")
}

func TestResolve_StoreFailure(t *testing.T) {
	r := New(failingStore{})
	_, err := r.Resolve(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Equal(t, core.ErrorKind(""), core.KindOf(err))
	assert.NotErrorIs(t, err, core.ErrIdentityNotFound)
}
