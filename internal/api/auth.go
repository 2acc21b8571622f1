package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Token exchanges credentials for a token pair.
func (c *Client) Token(ctx context.Context, username, password string) (*LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var resp LoginResponse
	err := c.sendJSON(ctx, http.MethodPost, "/token/", body, &resp)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if resp.Access == "" || resp.Refresh == "" {
		return nil, errors.New("backend returned incomplete token pair")
	}
	return &resp, nil
}

// TokenRefresh exchanges a refresh token for a fresh access token. The
// refresh token itself stays valid and is reused.
func (c *Client) TokenRefresh(ctx context.Context, refresh string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	err := c.sendJSON(ctx, http.MethodPost, "/token/refresh/", map[string]string{"refresh": refresh}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.New("backend returned empty access token")
	}
	return resp.Access, nil
}

// Logout asks the backend to blacklist the refresh token. The access
// token is passed explicitly because this call is made outside the
// authenticated pipeline during session teardown.
func (c *Client) Logout(ctx context.Context, refresh, access string) error {
	raw, err := jsonBody(map[string]string{"refresh": refresh})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/logout/", nil), raw)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return c.do(req, nil)
}

type RegisterParams struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Register creates a new account. Anonymous endpoint.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*User, error) {
	var user User
	if err := c.sendJSON(ctx, http.MethodPost, "/users/", params, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me fetches the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/users/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserTokens lists the outstanding tokens of the authenticated user.
func (c *Client) UserTokens(ctx context.Context) (*TokensPage, error) {
	var page TokensPage
	if err := c.getJSON(ctx, "/users/tokens/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RevokeToken blacklists one token by its id.
func (c *Client) RevokeToken(ctx context.Context, tokenID int64) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/token/revoke/%d/", tokenID), struct{}{}, nil)
}

// RevokeAllTokens blacklists every token except the current one.
func (c *Client) RevokeAllTokens(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/token/revoke-all/", struct{}{}, nil)
}
