package keyset

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DiscoverJWKSURL reads the jwks_uri from the issuer's OpenID configuration.
// go-oidc rejects a discovery document whose issuer differs from the requested one.
func DiscoverJWKSURL(ctx context.Context, issuer string, client *http.Client) (string, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("discovering issuer %q: %w", issuer, err)
	}

	var meta struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("decoding discovery document: %w", err)
	}
	if meta.JWKSURL == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}
	return meta.JWKSURL, nil
}
