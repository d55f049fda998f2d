package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/darmiel/sessionbridge/internal/api"
)

// ErrNotAuthenticated is returned when the server refused to exchange an external token.
var ErrNotAuthenticated = errors.New("external token was not accepted")

// Login exchanges username and password for a session token.
// The returned token has no "Bearer " prefix.
func (c *Client) Login(ctx context.Context, username, password string) (*api.TokenResponse, string, error) {
	var resp api.TokenResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LoginRoute).
		build(), api.LoginPayload{Username: username, Password: password}, &resp)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, correlation, ErrInvalidCredentials
		}
		return nil, correlation, err
	}
	resp.Token = stripBearer(resp.Token)
	return &resp, correlation, nil
}

// LoginExternal exchanges an external identity token for a session token.
func (c *Client) LoginExternal(ctx context.Context, token string) (*api.TokenResponse, string, error) {
	// the endpoint answers 200 in both cases, so decode into a union of both shapes
	var resp struct {
		api.TokenResponse
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	correlation, err := c.post(ctx, c.url().
		setPath(api.LoginExternalRoute).
		build(), api.LoginExternalPayload{Token: token}, &resp)
	if err != nil {
		return nil, correlation, err
	}
	if resp.Status == api.StatusError || resp.Token == "" {
		return nil, correlation, fmt.Errorf("%w: %s", ErrNotAuthenticated, resp.Message)
	}
	out := resp.TokenResponse
	out.Token = stripBearer(out.Token)
	return &out, correlation, nil
}

// Register creates an account with the User role.
func (c *Client) Register(ctx context.Context, payload api.RegisterPayload) (*api.StatusResponse, string, error) {
	return c.register(ctx, api.RegisterRoute, payload)
}

// RegisterAdmin creates an account with the Admin role.
func (c *Client) RegisterAdmin(ctx context.Context, payload api.RegisterPayload) (*api.StatusResponse, string, error) {
	return c.register(ctx, api.RegisterAdminRoute, payload)
}

func (c *Client) register(ctx context.Context, route string, payload api.RegisterPayload) (*api.StatusResponse, string, error) {
	var resp api.StatusResponse
	correlation, err := c.post(ctx, c.url().setPath(route).build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Me returns the principal the server sees for the configured credentials.
func (c *Client) Me(ctx context.Context) (*api.MeResponse, string, error) {
	var resp api.MeResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.MeRoute).
		build(), &resp)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, correlation, ErrInvalidSession
		}
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// MeExternal is like Me, but authenticates with an external identity token in header.
func (c *Client) MeExternal(ctx context.Context, header, token string) (*api.MeResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url().
		setPath(api.MeRoute).
		build(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(header, token)

	// a configured session token would take precedence over the external one
	var resp api.MeResponse
	correlation, err := c.send(req, &resp, false)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

func stripBearer(token string) string {
	return strings.TrimPrefix(token, "Bearer ")
}
