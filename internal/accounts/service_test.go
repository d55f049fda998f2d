package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/internal/core"
)

func newTestService() *Service {
	svc := NewService(NewInMemoryStore())
	svc.cost = bcrypt.MinCost
	return svc
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{password: "abc1"},
		{password: "1234"},
		{password: "abc", wantErr: true},
		{password: "abcd", wantErr: true},
		{password: "", wantErr: true},
		{password: "päß1"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := CheckPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckPassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	acc, err := svc.Register(ctx, "alice", "Alice@Example.com", "secret1", core.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.NotEqual(t, "secret1", acc.PasswordHash)

	roles, err := svc.Store().Roles(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{core.RoleUser}, roles)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"Duplicate Username", "alice", "other@example.com", "secret1", core.ErrAccountExists},
		{"Duplicate Username Weak Password", "alice", "other@example.com", "x", core.ErrAccountExists},
		{"Duplicate Email", "alice2", "ALICE@example.com", "secret1", core.ErrAccountExists},
		{"Weak Password", "bob", "bob@example.com", "secret", ErrWeakPassword},
		{"Missing Username", "", "bob@example.com", "secret1", ErrInvalidAccount},
		{"Invalid Email", "bob", "bob", "secret1", ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password, core.RoleUser)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret1", core.RoleUser)
	require.NoError(t, err)

	acc, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	_, err = svc.Authenticate(ctx, "alice", "wrong1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	seeds := []config.SeedAccount{
		{Username: "admin", Email: "admin@example.com", Password: "admin1", Roles: []string{core.RoleAdmin}},
		{Username: "user", Email: "user@example.com", Password: "user1"},
	}
	require.NoError(t, svc.Seed(ctx, seeds))
	// seeding twice is fine
	require.NoError(t, svc.Seed(ctx, seeds))

	acc, err := svc.Store().FindByUsername(ctx, "user")
	require.NoError(t, err)
	roles, err := svc.Store().Roles(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{core.RoleUser}, roles)

	err = svc.Seed(ctx, []config.SeedAccount{{Username: "weak", Email: "weak@example.com", Password: "weak"}})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.StoreConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, s)

	_, err = NewStore(context.Background(), config.StoreConfig{Type: "postgres"})
	assert.Error(t, err)

	_, err = NewStore(context.Background(), config.StoreConfig{Type: "mongo"})
	assert.Error(t, err)
}
