// Package keyset provides the public keys used to verify identity tokens of the external IdP.
package keyset

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

var (
	// ErrKeyNotFound is returned if no key with the requested key ID is known.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnavailable is returned if no key material could be obtained at all.
	ErrUnavailable = errors.New("key set unavailable")
)

// KeySet resolves verification keys by key ID.
// Implementations must be safe for concurrent use.
type KeySet interface {
	Key(ctx context.Context, kid string) (*jose.JSONWebKey, error)
}

// Parse decodes a JWKS document ({"keys": [...]}) or a single JWK into a key map.
// With strict set, any unusable key fails the whole document; otherwise unusable keys are skipped.
func Parse(doc []byte, strict bool) (map[string]jose.JSONWebKey, error) {
	var probe struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, fmt.Errorf("decoding key document: %w", err)
	}
	raw := probe.Keys
	if raw == nil {
		// not a set, treat the document as a single JWK
		raw = []json.RawMessage{doc}
	}

	keys := make(map[string]jose.JSONWebKey, len(raw))
	for idx, r := range raw {
		var jwk jose.JSONWebKey
		err := json.Unmarshal(r, &jwk)
		if err == nil {
			err = checkKey(jwk)
		}
		if err != nil {
			if strict {
				return nil, fmt.Errorf("key at index %d: %w", idx, err)
			}
			continue
		}
		if _, dup := keys[jwk.KeyID]; dup {
			if strict {
				return nil, fmt.Errorf("key at index %d: duplicate kid %q", idx, jwk.KeyID)
			}
			continue
		}
		keys[jwk.KeyID] = jwk
	}
	if len(keys) == 0 {
		return nil, errors.New("key document contains no usable keys")
	}
	return keys, nil
}

func checkKey(jwk jose.JSONWebKey) error {
	if jwk.KeyID == "" {
		return errors.New("missing kid")
	}
	if !jwk.Valid() {
		return fmt.Errorf("kid %q: invalid key", jwk.KeyID)
	}
	if !jwk.IsPublic() {
		return fmt.Errorf("kid %q: not a public key", jwk.KeyID)
	}
	if jwk.Use != "" && jwk.Use != "sig" {
		return fmt.Errorf("kid %q: key use %q is not sig", jwk.KeyID, jwk.Use)
	}
	switch jwk.Key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return nil
	default:
		return fmt.Errorf("kid %q: unsupported key type %T", jwk.KeyID, jwk.Key)
	}
}
