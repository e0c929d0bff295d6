package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medbook/pkg/logging"
)

type fakeTokens struct {
	mu         sync.Mutex
	access     string
	refreshed  string
	refreshErr error
	refreshes  int
	logouts    int
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.access = f.refreshed
	return f.refreshed, nil
}

func (f *fakeTokens) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.access = ""
	return nil
}

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return raw
}

func newTestClient(t *testing.T, tokens TokenSource, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := NewClient(Config{
		BaseURL: ts.URL + "/api/v1",
		Tokens:  tokens,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	return client
}

func TestAuthTransport_RefreshesExpiredToken(t *testing.T) {
	stale := signToken(t, "7", time.Now().Add(-time.Minute))
	fresh := signToken(t, "7", time.Now().Add(time.Hour))
	tokens := &fakeTokens{access: stale, refreshed: fresh}

	var gotAuth string
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":7,"fullName":"Nguyen Van A"}`))
	})

	user, err := client.GetUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, ID("7"), user.ID)
	assert.Equal(t, "Bearer "+fresh, gotAuth)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Zero(t, tokens.logouts)
}

func TestAuthTransport_ValidTokenIsNotRefreshed(t *testing.T) {
	valid := signToken(t, "7", time.Now().Add(time.Hour))
	tokens := &fakeTokens{access: valid}

	var gotAuth string
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"7"}`))
	})

	_, err := client.GetUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+valid, gotAuth)
	assert.Zero(t, tokens.refreshes)
}

func TestAuthTransport_NoTokenSendsNoHeader(t *testing.T) {
	tokens := &fakeTokens{}

	var gotAuth string
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.ListHospitals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.Zero(t, tokens.refreshes)
}

func TestAuthTransport_FailedRefreshLogsOutAndNeverDispatches(t *testing.T) {
	stale := signToken(t, "7", time.Now().Add(-time.Minute))
	tokens := &fakeTokens{access: stale, refreshErr: errors.New("refresh token revoked")}

	var hits atomic.Int32
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.BookAppointment(context.Background(), AppointmentRequest{HospitalID: 1, ServiceID: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, tokens.logouts)
	assert.Zero(t, hits.Load(), "request must not reach the server")
}

func TestAuthTransport_CancelledWhileRefreshingKeepsSession(t *testing.T) {
	stale := signToken(t, "7", time.Now().Add(-time.Minute))
	tokens := &fakeTokens{access: stale, refreshErr: context.Canceled}

	var hits atomic.Int32
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetUser(ctx, "7")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Zero(t, tokens.logouts, "giving up on a refresh is not a failed refresh")
	assert.Zero(t, hits.Load())
}

func TestAuthTransport_UndecodableTokenIsRefreshed(t *testing.T) {
	fresh := signToken(t, "7", time.Now().Add(time.Hour))
	tokens := &fakeTokens{access: "garbage", refreshed: fresh}

	var gotAuth string
	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"7"}`))
	})

	_, err := client.GetUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+fresh, gotAuth)
}

func TestAuthTransport_BusinessErrorsPassThrough(t *testing.T) {
	valid := signToken(t, "7", time.Now().Add(time.Hour))
	tokens := &fakeTokens{access: valid}

	client := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Doctor already has a booking for this slot","code":"SLOT_TAKEN"}`))
	})

	_, err := client.BookAppointment(context.Background(), AppointmentRequest{HospitalID: 1, ServiceID: 2})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "SLOT_TAKEN", apiErr.Code)
	assert.Equal(t, "Doctor already has a booking for this slot", apiErr.Message)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Zero(t, tokens.refreshes)
	assert.Zero(t, tokens.logouts)
}
