package keyset

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/sessionbridge/internal/idptest"
)

// single JWK as published by Okta for a custom authorization server
const oktaKey = `{
  "alg": "RS256",
  "e": "AQAB",
  "n": "u9uO_dmQ9dlu5gX6MCx0vbaQNabFPS-8RekE70UmYkkXN4FwZLmr_jwYYjc0ZUlxvtBbuyipxcS2UUjvaCs5SZdN55m69fn_KHj_F-POb5oEDA3oKH1614vGW74IFno6PFzN6knp6T7SDX-6bcQgdASVJqvrXtSwsD8mewqTfOok3fKfEodLSEFsBTOQQnndQDMjYwSi3B4MJ1gJ39y-dd8o9cGWArpyP4fmE7gD_vHfl5tiW3R0MDl9Jnq18rnupzZwyWh1TeF5VY5y_PUIKFV46PgcM_Phr54uX976pBQ7bEIpnKfyu36rlT1BIfFwkrgFYWuVAxssEws2T1MeSQ",
  "kid": "rtplymB0fYGYou296K2g0oQ18mg7pYtW8ch_XKvsZjs",
  "kty": "RSA",
  "use": "sig"
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		strict  bool
		wantIDs int
		wantErr bool
	}{
		{
			name:    "Single JWK",
			doc:     oktaKey,
			strict:  true,
			wantIDs: 1,
		},
		{
			name:    "Key Set",
			doc:     `{"keys": [` + oktaKey + `]}`,
			strict:  true,
			wantIDs: 1,
		},
		{
			name:    "Not JSON",
			doc:     `not json`,
			wantErr: true,
		},
		{
			name:    "Missing kid Strict",
			doc:     `{"keys": [{"kty":"RSA","e":"AQAB","n":"u9uO_dmQ9dlu5gX6MCx0vbaQNabFPS-8RekE70UmYkkXN4FwZLmr_jwYYjc0ZUlxvtBbuyipxcS2UUjvaCs5SZdN55m69fn_KHj_F-POb5oEDA3oKH1614vGW74IFno6PFzN6knp6T7SDX-6bcQgdASVJqvrXtSwsD8mewqTfOok3fKfEodLSEFsBTOQQnndQDMjYwSi3B4MJ1gJ39y-dd8o9cGWArpyP4fmE7gD_vHfl5tiW3R0MDl9Jnq18rnupzZwyWh1TeF5VY5y_PUIKFV46PgcM_Phr54uX976pBQ7bEIpnKfyu36rlT1BIfFwkrgFYWuVAxssEws2T1MeSQ"}]}`,
			strict:  true,
			wantErr: true,
		},
		{
			name:    "Unusable Key Skipped",
			doc:     `{"keys": [{"kty":"oct","kid":"hmac","k":"c2VjcmV0"},` + oktaKey + `]}`,
			strict:  false,
			wantIDs: 1,
		},
		{
			name:    "Symmetric Key Strict",
			doc:     `{"keys": [{"kty":"oct","kid":"hmac","k":"c2VjcmV0"}]}`,
			strict:  true,
			wantErr: true,
		},
		{
			name:    "Encryption Key",
			doc:     `{"keys": [{"kty":"RSA","kid":"enc","use":"enc","e":"AQAB","n":"u9uO_dmQ9dlu5gX6MCx0vbaQNabFPS-8RekE70UmYkkXN4FwZLmr_jwYYjc0ZUlxvtBbuyipxcS2UUjvaCs5SZdN55m69fn_KHj_F-POb5oEDA3oKH1614vGW74IFno6PFzN6knp6T7SDX-6bcQgdASVJqvrXtSwsD8mewqTfOok3fKfEodLSEFsBTOQQnndQDMjYwSi3B4MJ1gJ39y-dd8o9cGWArpyP4fmE7gD_vHfl5tiW3R0MDl9Jnq18rnupzZwyWh1TeF5VY5y_PUIKFV46PgcM_Phr54uX976pBQ7bEIpnKfyu36rlT1BIfFwkrgFYWuVAxssEws2T1MeSQ"}]}`,
			strict:  false,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := Parse([]byte(tt.doc), tt.strict)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(keys) != tt.wantIDs {
				t.Errorf("Parse() returned %d keys, want %d", len(keys), tt.wantIDs)
			}
		})
	}
}

func TestStatic_Key(t *testing.T) {
	set, err := NewStatic([]byte(oktaKey))
	require.NoError(t, err)

	k, err := set.Key(context.Background(), "rtplymB0fYGYou296K2g0oQ18mg7pYtW8ch_XKvsZjs")
	require.NoError(t, err)
	_, isRSA := k.Key.(*rsa.PublicKey)
	assert.True(t, isRSA)
	assert.Equal(t, "RS256", k.Algorithm)

	_, err = set.Key(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRemote_CachesKeys(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)

	set, err := NewRemote(RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)

	for range 5 {
		k, err := set.Key(context.Background(), "k1")
		require.NoError(t, err)
		assert.Equal(t, "k1", k.KeyID)
	}
	assert.EqualValues(t, 1, idp.JWKSHits.Load())
}

func TestRemote_RefreshOnMiss(t *testing.T) {
	k1 := idptest.NewRSAKey(t, "k1")
	k2 := idptest.NewECKey(t, "k2")
	idp := idptest.NewServer(t, k1)

	now := time.Now()
	set, err := NewRemote(RemoteConfig{
		URL:                idp.JWKSURL(),
		MinRefreshInterval: time.Minute,
		Now:                func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NoError(t, set.Warm(context.Background()))

	// rotation: k2 published, but the last refresh was just now
	idp.SetKeys(k1, k2)
	_, err = set.Key(context.Background(), "k2")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.EqualValues(t, 1, idp.JWKSHits.Load())

	// after the minimum interval an unknown kid triggers a refresh
	now = now.Add(2 * time.Minute)
	k, err := set.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", k.KeyID)
	assert.EqualValues(t, 2, idp.JWKSHits.Load())
}

func TestRemote_ServesStaleKeyOnFailure(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)

	now := time.Now()
	set, err := NewRemote(RemoteConfig{
		URL:      idp.JWKSURL(),
		CacheTTL: time.Minute,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NoError(t, set.Warm(context.Background()))

	idp.Fail.Store(true)
	now = now.Add(time.Hour)

	k, err := set.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", k.KeyID)
}

func TestRemote_Unavailable(t *testing.T) {
	idp := idptest.NewServer(t)
	idp.Fail.Store(true)

	set, err := NewRemote(RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)

	_, err = set.Key(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemote_ConcurrentRefreshIsShared(t *testing.T) {
	key := idptest.NewRSAKey(t, "k1")
	idp := idptest.NewServer(t, key)

	set, err := NewRemote(RemoteConfig{URL: idp.JWKSURL()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := set.Key(context.Background(), "k1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Key() error = %v", err)
	}
	// concurrent misses share fetches instead of issuing one each
	assert.Less(t, idp.JWKSHits.Load(), int32(20))
}

func TestRemote_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := idptest.NewServer(t)
	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	set, err := NewRemote(RemoteConfig{URL: srv.JWKSURL()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = set.Key(ctx, "k1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscoverJWKSURL(t *testing.T) {
	idp := idptest.NewServer(t)

	url, err := DiscoverJWKSURL(context.Background(), idp.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, idp.JWKSURL(), url)
}
