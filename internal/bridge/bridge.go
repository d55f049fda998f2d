// Package bridge turns requests carrying an external identity token into
// requests carrying an internally issued session token.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/api/middleware"
	"github.com/darmiel/sessionbridge/internal/audit"
	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/internal/core"
)

const (
	SourceNative  = "native"
	SourceBridged = "bridged"
)

type (
	Verifier interface {
		Verify(ctx context.Context, raw string) (*core.ExternalClaims, error)
	}
	Resolver interface {
		Resolve(ctx context.Context, email string) (*core.Identity, error)
	}
	Issuer interface {
		Issue(ctx context.Context, username string, roles []string) (*core.SessionToken, error)
	}
	Validator interface {
		Validate(raw string) (*core.SessionClaims, error)
	}
)

// Result is the terminal state of authenticating one request.
type Result string

const (
	// ResultNative means a valid native bearer token was presented.
	ResultNative Result = "native"
	// ResultRejected means a native bearer token was presented but is invalid.
	ResultRejected Result = "rejected"
	// ResultAnonymous means no credential was presented at all.
	ResultAnonymous Result = "anonymous"
	// ResultBridged means an external token was exchanged for a session token.
	ResultBridged Result = "bridged"
	// ResultSuppressed means an external token was presented but could not be exchanged.
	ResultSuppressed Result = "suppressed"
	// ResultCanceled means the request ended before the exchange completed.
	ResultCanceled Result = "canceled"
)

// ReasonInternal labels failures that are not an authentication error, e.g. a store outage.
const ReasonInternal core.ErrorKind = "internal"

type Outcome struct {
	Result Result

	// Principal is set for ResultNative and ResultBridged.
	Principal *core.Principal

	// Token is the session token minted for ResultBridged.
	Token *core.SessionToken

	// Reason is the error kind for ResultRejected and ResultSuppressed.
	Reason core.ErrorKind
	Err    error
}

// Authenticated reports whether the outcome carries a principal.
func (o Outcome) Authenticated() bool {
	return o.Principal != nil
}

func (o Outcome) reasonLabel() string {
	if o.Reason == "" && o.Err != nil {
		return string(ReasonInternal)
	}
	return string(o.Reason)
}

type Config struct {
	Verifier  Verifier
	Resolver  Resolver
	Issuer    Issuer
	Validator Validator

	// Auditor receives one entry per bridge attempt. Defaults to a NoopAuditor.
	Auditor core.Auditor
	// Metrics defaults to instruments on the global meter provider.
	Metrics *Metrics

	// Header carries the external identity token.
	Header string
}

// Authenticator decides, once per request, which credential a request carries.
// A native bearer token takes precedence over an external identity token.
type Authenticator struct {
	verifier  Verifier
	resolver  Resolver
	issuer    Issuer
	validator Validator
	auditor   core.Auditor
	metrics   *Metrics
	header    string
}

func New(cfg Config) (*Authenticator, error) {
	if cfg.Verifier == nil || cfg.Resolver == nil || cfg.Issuer == nil || cfg.Validator == nil {
		return nil, errors.New("verifier, resolver, issuer and validator are required")
	}
	if cfg.Auditor == nil {
		cfg.Auditor = audit.NewNoopAuditor()
	}
	if cfg.Metrics == nil {
		m, err := NewMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
		cfg.Metrics = m
	}
	if cfg.Header == "" {
		cfg.Header = config.DefaultExternalHeader
	}
	return &Authenticator{
		verifier:  cfg.Verifier,
		resolver:  cfg.Resolver,
		issuer:    cfg.Issuer,
		validator: cfg.Validator,
		auditor:   cfg.Auditor,
		metrics:   cfg.Metrics,
		header:    http.CanonicalHeaderKey(cfg.Header),
	}, nil
}

// Header returns the canonical name of the external token header.
func (a *Authenticator) Header() string {
	return a.header
}

// Authenticate inspects the request headers and returns the outcome.
// It never fails the request; a failed exchange leaves the request unauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) Outcome {
	var o Outcome
	switch auth := h.Get("Authorization"); {
	case auth != "":
		o = a.native(auth)
	case len(h.Values(a.header)) == 0:
		o = Outcome{Result: ResultAnonymous}
	default:
		o = a.bridge(ctx, h.Get(a.header))
	}
	a.metrics.record(context.WithoutCancel(ctx), o)
	return o
}

func (a *Authenticator) native(auth string) Outcome {
	raw, ok := bearerToken(auth)
	if !ok {
		return Outcome{
			Result: ResultRejected,
			Reason: core.KindMalformed,
			Err:    core.AuthErrorf(core.KindMalformed, "authorization header is not a bearer token"),
		}
	}
	claims, err := a.validator.Validate(raw)
	if err != nil {
		return Outcome{Result: ResultRejected, Reason: core.KindOf(err), Err: err}
	}
	return Outcome{
		Result: ResultNative,
		Principal: &core.Principal{
			Name:   claims.Name,
			Roles:  claims.Roles,
			Source: SourceNative,
			Token:  raw,
		},
	}
}

func (a *Authenticator) bridge(ctx context.Context, raw string) Outcome {
	tok, err := a.Exchange(ctx, raw)
	switch {
	case ctx.Err() != nil:
		// the caller is gone, a token minted now would never be used
		log.Ctx(ctx).Debug().Err(ctx.Err()).Msg("bridge.canceled")
		return Outcome{Result: ResultCanceled, Err: ctx.Err()}
	case err != nil:
		return Outcome{Result: ResultSuppressed, Reason: core.KindOf(err), Err: err}
	}
	return Outcome{
		Result: ResultBridged,
		Token:  tok,
		Principal: &core.Principal{
			Name:   tok.Claims.Name,
			Roles:  tok.Claims.Roles,
			Source: SourceBridged,
			Token:  tok.Value,
		},
	}
}

// Exchange verifies an external identity token, resolves its account and mints a session token.
// The minted token is validated like a native one before it is returned.
func (a *Authenticator) Exchange(ctx context.Context, raw string) (*core.SessionToken, error) {
	start := time.Now()
	entry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   start,
		Action: audit.ActionExchange,
	}

	tok, claims, err := a.exchange(ctx, raw)
	if claims != nil {
		entry.Subject = claims.Subject
	}
	a.metrics.recordExchange(context.WithoutCancel(ctx), float64(time.Since(start).Microseconds())/1000, err == nil)

	logger := log.Ctx(ctx)
	if err != nil {
		kind := core.KindOf(err)
		if kind == "" {
			kind = ReasonInternal
		}
		entry.Outcome = string(ResultSuppressed)
		entry.Reason = kind
		entry.Error = err.Error()
		a.log(ctx, entry)

		if kind == ReasonInternal {
			logger.Error().Err(err).Msg("bridge.exchange.failed")
		} else {
			logger.Warn().Err(err).Str("reason", string(kind)).Msg("bridge.exchange.rejected")
		}
		return nil, err
	}

	entry.Outcome = string(ResultBridged)
	entry.Success = true
	entry.Username = tok.Claims.Name
	entry.TokenFingerprint = audit.Fingerprint(tok.Value)
	entry.Metadata = map[string]any{
		"roles":      tok.Claims.Roles,
		"expires_at": tok.ExpiresAt,
	}
	a.log(ctx, entry)

	logger.Info().
		Str("username", tok.Claims.Name).
		Strs("roles", tok.Claims.Roles).
		Msg("bridge.exchanged")
	return tok, nil
}

func (a *Authenticator) exchange(ctx context.Context, raw string) (*core.SessionToken, *core.ExternalClaims, error) {
	claims, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	identity, err := a.resolver.Resolve(ctx, claims.Email)
	if err != nil {
		return nil, claims, err
	}
	tok, err := a.issuer.Issue(ctx, identity.Username, identity.Roles)
	if err != nil {
		return nil, claims, fmt.Errorf("issuing session token: %w", err)
	}
	if _, err := a.validator.Validate(tok.Value); err != nil {
		return nil, claims, fmt.Errorf("issued token does not validate: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, claims, err
	}
	return tok, claims, nil
}

func (a *Authenticator) log(ctx context.Context, entry core.AuditEntry) {
	if err := a.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to write audit entry")
	}
}

func bearerToken(auth string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(auth), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
