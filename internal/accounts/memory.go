package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darmiel/sessionbridge/internal/core"
)

var _ core.AccountStore = (*InMemoryStore)(nil)

// InMemoryStore keeps accounts in process memory. Used for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]core.Account       // by id
	byName   map[string]string             // username -> id
	byEmail  map[string]string             // lower(email) -> id
	roles    map[string]map[string]struct{} // id -> role set
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]core.Account),
		byName:   make(map[string]string),
		byEmail:  make(map[string]string),
		roles:    make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	acc := s.accounts[id]
	return &acc, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	acc := s.accounts[id]
	return &acc, nil
}

func (s *InMemoryStore) Roles(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, core.ErrAccountNotFound
	}
	roles := make([]string, 0, len(s.roles[accountID]))
	for r := range s.roles[accountID] {
		roles = append(roles, r)
	}
	return core.NormalizeRoles(roles), nil
}

func (s *InMemoryStore) Create(_ context.Context, na core.NewAccount) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(na.Email)
	if _, ok := s.byName[na.Username]; ok {
		return nil, core.ErrAccountExists
	}
	if _, ok := s.byEmail[email]; ok && email != "" {
		return nil, core.ErrAccountExists
	}

	acc := core.Account{
		ID:           uuid.NewString(),
		Username:     na.Username,
		Email:        email,
		PasswordHash: na.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.accounts[acc.ID] = acc
	s.byName[acc.Username] = acc.ID
	if email != "" {
		s.byEmail[email] = acc.ID
	}
	s.roles[acc.ID] = make(map[string]struct{})
	return &acc, nil
}

func (s *InMemoryStore) AddRoles(_ context.Context, accountID string, roles ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.roles[accountID]
	if !ok {
		return core.ErrAccountNotFound
	}
	for _, r := range roles {
		if r != "" {
			set[r] = struct{}{}
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
