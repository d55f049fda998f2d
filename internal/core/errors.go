package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a token could not be turned into an identity.
type ErrorKind string

const (
	KindMissingToken     ErrorKind = "missing_token"
	KindMalformed        ErrorKind = "malformed"
	KindSignatureInvalid ErrorKind = "signature_invalid"
	KindExpired          ErrorKind = "expired"
	KindIssuerUntrusted  ErrorKind = "issuer_untrusted"
	KindIdentityNotFound ErrorKind = "identity_not_found"
)

// Sentinels usable with errors.Is against any *AuthError of the same kind.
var (
	ErrMissingToken     = &AuthError{Kind: KindMissingToken}
	ErrMalformed        = &AuthError{Kind: KindMalformed}
	ErrSignatureInvalid = &AuthError{Kind: KindSignatureInvalid}
	ErrExpired          = &AuthError{Kind: KindExpired}
	ErrIssuerUntrusted  = &AuthError{Kind: KindIssuerUntrusted}
	ErrIdentityNotFound = &AuthError{Kind: KindIdentityNotFound}
)

// AuthError is returned by the verifier and the resolver.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

// NewAuthError wraps cause with the given kind.
func NewAuthError(kind ErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}

// AuthErrorf formats a cause and wraps it with the given kind.
func AuthErrorf(kind ErrorKind, format string, args ...any) *AuthError {
	return &AuthError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any *AuthError with the same kind.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *AuthError in err's chain, or an empty kind.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
