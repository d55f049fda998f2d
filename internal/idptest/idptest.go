// Package idptest provides a fake external identity provider for tests:
// it holds signing keys, serves discovery and JWKS documents and signs identity tokens.
package idptest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Key is a signing key of the fake IdP.
type Key struct {
	ID      string
	Method  jwt.SigningMethod
	Private crypto.Signer
}

// JWK returns the public half of the key as a JSON web key.
func (k Key) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       k.Private.Public(),
		KeyID:     k.ID,
		Algorithm: k.Method.Alg(),
		Use:       "sig",
	}
}

func NewRSAKey(t testing.TB, kid string) Key {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	return Key{ID: kid, Method: jwt.SigningMethodRS256, Private: priv}
}

func NewECKey(t testing.TB, kid string) Key {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ec key: %v", err)
	}
	return Key{ID: kid, Method: jwt.SigningMethodES256, Private: priv}
}

// Claims is the claim set of a fake identity token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// DefaultClaims returns valid claims for the given issuer and email, expiring in one hour.
func DefaultClaims(issuer, email string) Claims {
	now := time.Now()
	return Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "00u" + email,
			Audience:  jwt.ClaimStrings{"0oa-test-client"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

// Sign signs claims with key, setting the kid header to the key ID.
func Sign(t testing.TB, key Key, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(key.Method, claims)
	tok.Header["kid"] = key.ID
	s, err := tok.SignedString(key.Private)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

// JWKS returns the JSON document of the public keys.
func JWKS(t testing.TB, keys ...Key) []byte {
	t.Helper()
	data, err := jwksDocument(keys)
	if err != nil {
		t.Fatalf("marshalling jwks: %v", err)
	}
	return data
}

func jwksDocument(keys []Key) ([]byte, error) {
	set := jose.JSONWebKeySet{}
	for _, k := range keys {
		set.Keys = append(set.Keys, k.JWK())
	}
	return json.Marshal(set)
}

// Server is a fake IdP serving /.well-known/openid-configuration and /keys.
type Server struct {
	*httptest.Server

	mu   sync.Mutex
	keys []Key

	// JWKSHits counts requests to the JWKS endpoint.
	JWKSHits atomic.Int32
	// Fail makes the JWKS endpoint answer with 500.
	Fail atomic.Bool
}

func NewServer(t testing.TB, keys ...Key) *Server {
	t.Helper()
	s := &Server{keys: keys}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 s.URL,
			"authorization_endpoint": s.URL + "/authorize",
			"token_endpoint":         s.URL + "/token",
			"jwks_uri":               s.URL + "/keys",
		})
	})
	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		s.JWKSHits.Add(1)
		if s.Fail.Load() {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		keys := append([]Key(nil), s.keys...)
		s.mu.Unlock()
		doc, err := jwksDocument(keys)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// JWKSURL returns the URL of the JWKS endpoint.
func (s *Server) JWKSURL() string {
	return s.URL + "/keys"
}

// SetKeys replaces the published keys (key rotation).
func (s *Server) SetKeys(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}
