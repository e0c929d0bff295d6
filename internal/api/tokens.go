package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TokenClient talks to the token endpoints. It sends no Authorization
// header, so refreshing never re-enters the refresh pipeline.
type TokenClient struct {
	requester
}

// NewTokenClient builds an unauthenticated client for POST /tokens and
// POST /tokens/refresh.
func NewTokenClient(cfg Config) (*TokenClient, error) {
	r, err := newRequester(cfg)
	if err != nil {
		return nil, err
	}
	return &TokenClient{requester: r}, nil
}

// Issue exchanges credentials for a token pair.
func (c *TokenClient) Issue(ctx context.Context, creds Credentials) (*TokenPair, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, errors.New("api: issue tokens: username and password are required")
	}
	var pair TokenPair
	if err := c.doJSON(ctx, "issue tokens", http.MethodPost, "/tokens", "/tokens", creds, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, errors.New("api: issue tokens: response missing accessToken")
	}
	return &pair, nil
}

// Refresh mints a new access token from a refresh token.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("api: refresh tokens: refresh token is required")
	}
	body := map[string]string{"refreshToken": refreshToken}
	var pair TokenPair
	if err := c.doJSON(ctx, "refresh tokens", http.MethodPost, "/tokens/refresh", "/tokens/refresh", body, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("api: refresh tokens: response missing accessToken")
	}
	return &pair, nil
}
