package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/medbook/internal/token"
	"github.com/wolfman30/medbook/pkg/logging"
)

// TokenSource is what the refresh pipeline needs from the session: the
// current access token, a way to mint a new one, and a way to end the
// session when that fails.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

var isTokenExpired = token.IsExpired

// authTransport runs before every authenticated request. A stale token is
// refreshed before dispatch; if that fails the session is ended and the
// request is never sent.
type authTransport struct {
	base    http.RoundTripper
	tokens  TokenSource
	expired func(string) bool
	logger  *logging.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	accessToken := t.tokens.AccessToken()
	if accessToken != "" && t.expired(accessToken) {
		fresh, err := t.tokens.Refresh(ctx)
		if err == nil && fresh == "" {
			err = errors.New("refresh returned an empty token")
		}
		if err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			// The caller gave up waiting; the refresh itself may still
			// succeed for everyone else.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("api: waiting for token refresh: %w", ctxErr)
			}
			t.logger.Warn("access token refresh failed, ending session",
				"method", req.Method,
				"path", req.URL.Path,
				"error", err,
			)
			if logoutErr := t.tokens.Logout(context.WithoutCancel(ctx)); logoutErr != nil {
				t.logger.Error("logout after failed refresh", "error", logoutErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		accessToken = fresh
	}

	out := req.Clone(ctx)
	if accessToken != "" {
		out.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return t.base.RoundTrip(out)
}
