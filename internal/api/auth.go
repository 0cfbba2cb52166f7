package api

import (
	"context"
	"net/http"
	"net/url"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "auth/login",
		path:     "auth/login",
		body:     credentials{Email: email, Password: password},
	}, &out)
	return out, err
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "auth/register",
		path:     "auth/register",
		body:     credentials{Email: email, Password: password},
	}, &out)
	return out, err
}

// Me resolves the identity and tier behind token.
func (c *Client) Me(ctx context.Context, token string) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "auth/me",
		path:     "auth/me",
		query:    url.Values{"token": {token}},
	}, &out)
	return out, err
}

// UpgradeTier asks the backend to move the account to tier.
func (c *Client) UpgradeTier(ctx context.Context, token, tier string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "subscription/upgrade",
		path:     "subscription/upgrade",
		query:    url.Values{"tier": {tier}, "token": {token}},
	}, nil)
}
