package keyset

import (
	"context"
	"fmt"
	"os"

	jose "github.com/go-jose/go-jose/v4"
)

var _ KeySet = (*Static)(nil)

// Static is a fixed set of keys loaded once at startup.
type Static struct {
	keys map[string]jose.JSONWebKey
}

// NewStatic parses a JWKS document (or a single JWK). Every key must be usable.
func NewStatic(doc []byte) (*Static, error) {
	keys, err := Parse(doc, true)
	if err != nil {
		return nil, err
	}
	return &Static{keys: keys}, nil
}

// NewStaticFromFile reads a JWKS document from path.
func NewStaticFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return NewStatic(data)
}

func (s *Static) Key(_ context.Context, kid string) (*jose.JSONWebKey, error) {
	k, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return &k, nil
}

// KeyIDs returns the IDs of all keys in the set.
func (s *Static) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		ids = append(ids, kid)
	}
	return ids
}
