// Package verifier checks identity tokens of the external IdP.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darmiel/sessionbridge/internal/core"
	"github.com/darmiel/sessionbridge/internal/keyset"
)

// asymmetric algorithms only; an HMAC token can never be an external identity token
var validMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

type Config struct {
	// Issuer is the trusted issuer; the `iss` claim must match exactly.
	Issuer string

	// Audience is checked only if ValidateAudience is set.
	Audience         string
	ValidateAudience bool

	// Leeway is the allowed clock skew for exp and nbf.
	Leeway time.Duration

	// Now is used for tests; defaults to time.Now.
	Now func() time.Time
}

// Verifier validates signature, expiry and issuer of external identity tokens.
// It holds no mutable state, verifying the same token twice yields the same result.
type Verifier struct {
	keys   keyset.KeySet
	cfg    Config
	parser *jwt.Parser
}

type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func New(keys keyset.KeySet, cfg Config) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("key set is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("trusted issuer is required")
	}
	if cfg.ValidateAudience && cfg.Audience == "" {
		return nil, errors.New("audience validation enabled but no audience configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.ValidateAudience {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		keys:   keys,
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issuer returns the trusted issuer.
func (v *Verifier) Issuer() string {
	return v.cfg.Issuer
}

// Verify checks raw and returns its claims. Errors are *core.AuthError,
// except for context cancellation which is returned as is.
func (v *Verifier) Verify(ctx context.Context, raw string) (*core.ExternalClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, core.AuthErrorf(core.KindMissingToken, "no identity token")
	}

	var claims idTokenClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Email == "" {
		return nil, core.AuthErrorf(core.KindMalformed, "token has no email claim")
	}

	out := &core.ExternalClaims{
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (v *Verifier) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, core.AuthErrorf(core.KindSignatureInvalid, "token header has no kid")
	}

	jwk, err := v.keys.Key(ctx, kid)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, keyset.ErrKeyNotFound):
		return nil, core.NewAuthError(core.KindSignatureInvalid, err)
	default:
		return nil, core.NewAuthError(core.KindIssuerUntrusted, err)
	}

	if jwk.Algorithm != "" && jwk.Algorithm != t.Method.Alg() {
		return nil, core.AuthErrorf(core.KindSignatureInvalid,
			"token algorithm %s does not match key algorithm %s", t.Method.Alg(), jwk.Algorithm)
	}
	return jwk.Key, nil
}

// classify maps jwt validation errors to error kinds.
func classify(err error) error {
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return core.NewAuthError(core.KindMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return core.NewAuthError(core.KindExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return core.NewAuthError(core.KindIssuerUntrusted, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return core.NewAuthError(core.KindSignatureInvalid, err)
	default:
		return core.NewAuthError(core.KindMalformed, fmt.Errorf("validating token: %w", err))
	}
}
