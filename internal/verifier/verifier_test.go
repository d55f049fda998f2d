package verifier

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/sessionbridge/internal/core"
	"github.com/darmiel/sessionbridge/internal/idptest"
	"github.com/darmiel/sessionbridge/internal/keyset"
)

const testIssuer = "https://dev-97692058.okta.com/oauth2/default"

func newStaticVerifier(t *testing.T, cfg Config, keys ...idptest.Key) *Verifier {
	t.Helper()
	set, err := keyset.NewStatic(idptest.JWKS(t, keys...))
	require.NoError(t, err)
	if cfg.Issuer == "" {
		cfg.Issuer = testIssuer
	}
	v, err := New(set, cfg)
	require.NoError(t, err)
	return v
}

func TestVerify(t *testing.T) {
	key := idptest.NewRSAKey(t, "rtplymB0fYGYou296K2g0oQ18mg7pYtW8ch_XKvsZjs")
	other := idptest.NewRSAKey(t, "other")
	ecKey := idptest.NewECKey(t, "ec")
	v := newStaticVerifier(t, Config{}, key, ecKey)

	valid := idptest.DefaultClaims(testIssuer, "alice@example.com")

	expired := idptest.DefaultClaims(testIssuer, "alice@example.com")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	notYet := idptest.DefaultClaims(testIssuer, "alice@example.com")
	notYet.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	noExp := idptest.DefaultClaims(testIssuer, "alice@example.com")
	noExp.ExpiresAt = nil

	noEmail := idptest.DefaultClaims(testIssuer, "")

	foreign := idptest.DefaultClaims("https://evil.example.com", "alice@example.com")

	tests := []struct {
		name     string
		token    string
		wantKind core.ErrorKind
	}{
		{
			name:  "Valid RSA",
			token: idptest.Sign(t, key, valid),
		},
		{
			name:  "Valid EC",
			token: idptest.Sign(t, ecKey, valid),
		},
		{
			name:     "Empty",
			token:    "  ",
			wantKind: core.KindMissingToken,
		},
		{
			name:     "Garbage",
			token:    "not-a-token",
			wantKind: core.KindMalformed,
		},
		{
			name:     "Unknown Key",
			token:    idptest.Sign(t, other, valid),
			wantKind: core.KindSignatureInvalid,
		},
		{
			name:     "Expired",
			token:    idptest.Sign(t, key, expired),
			wantKind: core.KindExpired,
		},
		{
			name:     "Not Yet Valid",
			token:    idptest.Sign(t, key, notYet),
			wantKind: core.KindExpired,
		},
		{
			name:     "Missing Expiry",
			token:    idptest.Sign(t, key, noExp),
			wantKind: core.KindMalformed,
		},
		{
			name:     "Untrusted Issuer",
			token:    idptest.Sign(t, key, foreign),
			wantKind: core.KindIssuerUntrusted,
		},
		{
			name:     "Missing Email",
			token:    idptest.Sign(t, key, noEmail),
			wantKind: core.KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(context.Background(), tt.token)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, "alice@example.com", claims.Email)
				assert.Equal(t, testIssuer, claims.Issuer)
				assert.Equal(t, "00ualice@example.com", claims.Subject)
				return
			}
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, tt.wantKind, core.KindOf(err), "error: %v", err)
		})
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	v := newStaticVerifier(t, Config{}, key)

	token := idptest.Sign(t, key, idptest.DefaultClaims(testIssuer, "alice@example.com"))
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	forged := idptest.DefaultClaims(testIssuer, "mallory@example.com")
	payload := strings.Split(idptest.Sign(t, key, forged), ".")[1]
	tampered := parts[0] + "." + payload + "." + parts[2]

	_, err := v.Verify(context.Background(), tampered)
	assert.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerify_MissingKid(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	v := newStaticVerifier(t, Config{}, key)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, idptest.DefaultClaims(testIssuer, "alice@example.com"))
	raw, err := tok.SignedString(key.Private)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerify_RejectsSymmetricAlgorithm(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	v := newStaticVerifier(t, Config{}, key)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, idptest.DefaultClaims(testIssuer, "alice@example.com"))
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerify_UnsignedToken(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	v := newStaticVerifier(t, Config{}, key)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","kid":"k1"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"` + testIssuer + `","email":"alice@example.com","exp":4102444800}`))

	_, err := v.Verify(context.Background(), header+"."+payload+".")
	require.Error(t, err)
	assert.NotEqual(t, core.ErrorKind(""), core.KindOf(err))
}

func TestVerify_Audience(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	claims := idptest.DefaultClaims(testIssuer, "alice@example.com")
	token := idptest.Sign(t, key, claims)

	tests := []struct {
		name     string
		cfg      Config
		wantKind core.ErrorKind
	}{
		{
			name: "Disabled",
			cfg:  Config{Audience: "someone-else"},
		},
		{
			name: "Matching",
			cfg:  Config{Audience: "0oa-test-client", ValidateAudience: true},
		},
		{
			name:     "Mismatch",
			cfg:      Config{Audience: "someone-else", ValidateAudience: true},
			wantKind: core.KindIssuerUntrusted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newStaticVerifier(t, tt.cfg, key)
			_, err := v.Verify(context.Background(), token)
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}

func TestVerify_Leeway(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	claims := idptest.DefaultClaims(testIssuer, "alice@example.com")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-30 * time.Second))
	token := idptest.Sign(t, key, claims)

	strict := newStaticVerifier(t, Config{}, key)
	_, err := strict.Verify(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrExpired)

	lenient := newStaticVerifier(t, Config{Leeway: time.Minute}, key)
	_, err = lenient.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestVerify_Idempotent(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	v := newStaticVerifier(t, Config{}, key)
	token := idptest.Sign(t, key, idptest.DefaultClaims(testIssuer, "alice@example.com"))

	first, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVerify_RemoteKeySet(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)

	set, err := keyset.NewRemote(keyset.RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)
	v, err := New(set, Config{Issuer: idp.URL})
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), idptest.Sign(t, key, idptest.DefaultClaims(idp.URL, "bob@example.com")))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)

	// a new key is picked up after rotation
	rotated := idptest.NewECKey(t, "k2")
	idp.SetKeys(key, rotated)
	set2, err := keyset.NewRemote(keyset.RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)
	v2, err := New(set2, Config{Issuer: idp.URL})
	require.NoError(t, err)
	_, err = v2.Verify(context.Background(), idptest.Sign(t, rotated, idptest.DefaultClaims(idp.URL, "bob@example.com")))
	assert.NoError(t, err)
}

func TestVerify_UnavailableKeySet(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)
	idp.Fail.Store(true)

	set, err := keyset.NewRemote(keyset.RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)
	v, err := New(set, Config{Issuer: idp.URL})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), idptest.Sign(t, key, idptest.DefaultClaims(idp.URL, "bob@example.com")))
	assert.ErrorIs(t, err, core.ErrIssuerUntrusted)
}

func TestVerify_ContextCanceled(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)

	set, err := keyset.NewRemote(keyset.RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)
	v, err := New(set, Config{Issuer: idp.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = v.Verify(ctx, idptest.Sign(t, key, idptest.DefaultClaims(idp.URL, "bob@example.com")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, core.ErrorKind(""), core.KindOf(err))
}

func TestNew(t *testing.T) {
	set, err := keyset.NewStatic(idptest.JWKS(t, idptest.NewRSAKey(t, "k1")))
	require.NoError(t, err)

	_, err = New(nil, Config{Issuer: testIssuer})
	assert.Error(t, err)
	_, err = New(set, Config{})
	assert.Error(t, err)
	_, err = New(set, Config{Issuer: testIssuer, ValidateAudience: true})
	assert.Error(t, err)
}
