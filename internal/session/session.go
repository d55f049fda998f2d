// Package session issues and validates the internal HS256 session tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/darmiel/sessionbridge/internal/core"
)

// Validity is the lifetime of every issued session token.
const Validity = 3 * time.Hour

// MinSecretLength is the minimum HS256 key length in bytes.
const MinSecretLength = 32

type Config struct {
	// Secret is the process-wide signing key.
	Secret []byte

	Issuer   string
	Audience string

	// Now is used for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Config) check() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if c.Issuer == "" || c.Audience == "" {
		return errors.New("session issuer and audience are required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Issuer mints session tokens. It is safe for concurrent use.
type Issuer struct {
	cfg Config
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue mints a token for username carrying one role entry per distinct role.
// The token expires exactly Validity after it was issued.
func (i *Issuer) Issue(ctx context.Context, username string, roles []string) (*core.SessionToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username is required")
	}

	// jwt NumericDate has second precision
	now := i.cfg.Now().UTC().Truncate(time.Second)
	exp := now.Add(Validity)

	claims := core.SessionClaims{
		Name:  username,
		Roles: core.NormalizeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   username,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	return &core.SessionToken{
		Value:     signed,
		Claims:    claims,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Validator checks session tokens issued with the same configuration.
type Validator struct {
	cfg    Config
	parser *jwt.Parser
}

func NewValidator(cfg Config) (*Validator, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &Validator{
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// Validate parses raw and returns its claims. Errors are *core.AuthError.
func (v *Validator) Validate(raw string) (*core.SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, core.AuthErrorf(core.KindMissingToken, "no session token")
	}

	var claims core.SessionClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return nil, core.NewAuthError(core.KindMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, core.NewAuthError(core.KindExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, core.NewAuthError(core.KindIssuerUntrusted, err)
	default:
		return nil, core.NewAuthError(core.KindSignatureInvalid, err)
	}

	if claims.Name == "" {
		return nil, core.AuthErrorf(core.KindMalformed, "session token has no name claim")
	}
	return &claims, nil
}
