// Package accounts manages internal accounts: creation, password checks and role assignment.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/internal/core"
)

const MinPasswordLength = 4

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password does not meet the policy")
	ErrInvalidAccount     = errors.New("invalid account details")
)

type Service struct {
	store core.AccountStore
	cost  int
}

func NewService(store core.AccountStore) *Service {
	return &Service{
		store: store,
		cost:  bcrypt.DefaultCost,
	}
}

// Store returns the underlying account store.
func (s *Service) Store() core.AccountStore {
	return s.store
}

// CheckPassword returns ErrWeakPassword unless password has at least MinPasswordLength characters and a digit.
func CheckPassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, MinPasswordLength)
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return fmt.Errorf("%w: at least one digit required", ErrWeakPassword)
	}
	return nil
}

// Register creates an account and assigns roles to it.
func (s *Service) Register(ctx context.Context, username, email, password string, roles ...string) (*core.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidAccount)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidAccount)
	}

	// a taken username is reported before the password policy
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return nil, core.ErrAccountExists
	} else if !errors.Is(err, core.ErrAccountNotFound) {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := CheckPassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acc, err := s.store.Create(ctx, core.NewAccount{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.AddRoles(ctx, acc.ID, roles...); err != nil {
		return nil, fmt.Errorf("assigning roles: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("username", acc.Username).
		Strs("roles", roles).
		Msg("Account registered")
	return acc, nil
}

// Authenticate checks username and password. It does not reveal which of both was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*core.Account, error) {
	acc, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, core.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// Seed registers the configured accounts, skipping those that already exist.
func (s *Service) Seed(ctx context.Context, seeds []config.SeedAccount) error {
	for _, sa := range seeds {
		roles := sa.Roles
		if len(roles) == 0 {
			roles = []string{core.RoleUser}
		}
		_, err := s.Register(ctx, sa.Username, sa.Email, sa.Password, roles...)
		switch {
		case errors.Is(err, core.ErrAccountExists):
			log.Ctx(ctx).Debug().Str("username", sa.Username).Msg("Seed account already exists")
		case err != nil:
			return fmt.Errorf("seeding account %q: %w", sa.Username, err)
		}
	}
	return nil
}
