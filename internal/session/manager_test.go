package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/observability/metrics"
	"github.com/wolfman30/medbook/pkg/logging"
)

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return raw
}

type fakeIssuer struct {
	issued     *api.TokenPair
	issueErr   error
	refreshed  *api.TokenPair
	refreshErr error
	// release, when set, blocks Refresh until closed.
	release chan struct{}
	started chan struct{}

	refreshCalls atomic.Int32
	lastRefresh  atomic.Value
}

func (f *fakeIssuer) Issue(context.Context, api.Credentials) (*api.TokenPair, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issued, nil
}

func (f *fakeIssuer) Refresh(_ context.Context, refreshToken string) (*api.TokenPair, error) {
	f.refreshCalls.Add(1)
	f.lastRefresh.Store(refreshToken)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUser(ctx context.Context, userID string) (*api.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*api.User)
	return user, args.Error(1)
}

func newTestManager(issuer Issuer, store Store) *Manager {
	return NewManager(issuer, store, logging.Discard(), nil)
}

func TestManager_RefreshCoalescesConcurrentCallers(t *testing.T) {
	fresh := signToken(t, "7", time.Now().Add(time.Hour))
	issuer := &fakeIssuer{
		refreshed: &api.TokenPair{AccessToken: fresh},
		release:   make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	reg := prometheus.NewRegistry()
	m := NewManager(issuer, nil, logging.Discard(), metrics.NewClientMetrics(reg))
	m.refreshToken = "r1"

	const callers = 8
	var (
		wg      sync.WaitGroup
		entered atomic.Int32
		results = make([]string, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Add(1)
			results[i], errs[i] = m.Refresh(context.Background())
		}(i)
	}

	<-issuer.started
	require.Eventually(t, func() bool { return entered.Load() == callers }, time.Second, time.Millisecond)
	// Give the last goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(issuer.release)
	wg.Wait()

	assert.Equal(t, int32(1), issuer.refreshCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fresh, results[i])
	}
	assert.Equal(t, fresh, m.AccessToken())
	assert.Equal(t, float64(callers-1), counterValue(t, reg, "medbook_session_token_refresh_shared_total"),
		"the caller that made the backend call is not a waiter")
	count, err := testutil.GatherAndCount(reg, "medbook_session_token_refresh_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one refresh outcome series")
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestManager_RefreshCallerCancelDoesNotFailOthers(t *testing.T) {
	fresh := signToken(t, "7", time.Now().Add(time.Hour))
	issuer := &fakeIssuer{
		refreshed: &api.TokenPair{AccessToken: fresh},
		release:   make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	m := newTestManager(issuer, nil)
	m.refreshToken = "r1"

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Refresh(cancelled)
		firstErr <- err
	}()
	<-issuer.started

	second := make(chan string, 1)
	go func() {
		tok, _ := m.Refresh(context.Background())
		second <- tok
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(issuer.release)
	select {
	case tok := <-second:
		assert.Equal(t, fresh, tok)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never received the shared refresh")
	}
}

func TestManager_RefreshKeepsRefreshTokenWhenOmitted(t *testing.T) {
	fresh := signToken(t, "7", time.Now().Add(time.Hour))
	issuer := &fakeIssuer{refreshed: &api.TokenPair{AccessToken: fresh}}
	store := NewMemoryStore()
	m := newTestManager(issuer, store)
	m.refreshToken = "r1"
	m.refreshExpiry = time.Now().Add(24 * time.Hour)

	tok, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, tok)
	assert.Equal(t, "r1", issuer.lastRefresh.Load())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken)
}

func TestManager_RefreshWithoutRefreshToken(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newTestManager(issuer, nil)

	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, issuer.refreshCalls.Load())

	m.refreshToken = "r1"
	m.refreshExpiry = time.Now().Add(-time.Minute)
	_, err = m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken, "expired refresh token is never presented")
	assert.Zero(t, issuer.refreshCalls.Load())
}

func TestManager_RefreshFailure(t *testing.T) {
	issuer := &fakeIssuer{refreshErr: errors.New("revoked")}
	m := newTestManager(issuer, nil)
	m.refreshToken = "r1"

	_, err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
}

func TestManager_LoginAndLogout(t *testing.T) {
	access := signToken(t, "7", time.Now().Add(time.Hour))
	expiry := time.Now().Add(7 * 24 * time.Hour).UTC()
	issuer := &fakeIssuer{issued: &api.TokenPair{
		AccessToken:            access,
		RefreshToken:           "r1",
		RefreshTokenExpiryTime: api.Timestamp{Time: expiry},
	}}
	store := NewMemoryStore()
	m := newTestManager(issuer, store)

	users := &mockUsers{}
	users.On("GetUser", mock.Anything, "7").Return(&api.User{ID: "7", FullName: "Nguyen Van A"}, nil).Once()

	user, err := m.Login(context.Background(), api.Credentials{Username: "patient", Password: "secret"}, users)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", user.FullName)
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, Allow, m.Guard())
	assert.Equal(t, access, m.AccessToken())
	users.AssertExpectations(t)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, access, stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken)
	assert.True(t, stored.RefreshTokenExpiry.Equal(expiry))

	require.NoError(t, m.Logout(context.Background()))
	require.NoError(t, m.Logout(context.Background()))
	assert.Empty(t, m.AccessToken())
	assert.Nil(t, m.User())
	assert.Equal(t, RedirectLogin, m.Guard())

	stored, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())
}

func TestManager_LoginProfileFailureLeavesAnonymous(t *testing.T) {
	access := signToken(t, "7", time.Now().Add(time.Hour))
	issuer := &fakeIssuer{issued: &api.TokenPair{AccessToken: access, RefreshToken: "r1"}}
	store := NewMemoryStore()
	m := newTestManager(issuer, store)

	users := &mockUsers{}
	users.On("GetUser", mock.Anything, "7").Return(nil, errors.New("boom"))

	_, err := m.Login(context.Background(), api.Credentials{Username: "patient", Password: "secret"}, users)
	require.Error(t, err)
	assert.Equal(t, StateAnonymous, m.State())
	assert.Empty(t, m.AccessToken())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())
}

func TestManager_LoginRejected(t *testing.T) {
	issuer := &fakeIssuer{issueErr: &api.APIError{Op: "issue tokens", StatusCode: 401, Message: "invalid credentials"}}
	m := newTestManager(issuer, nil)

	_, err := m.Login(context.Background(), api.Credentials{Username: "patient", Password: "bad"}, &mockUsers{})
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, 401))
	assert.Equal(t, StateUninitialized, m.State())
}

func TestIsTokenExpired(t *testing.T) {
	assert.True(t, IsTokenExpired(signToken(t, "7", time.Now().Add(-time.Second))))
	assert.False(t, IsTokenExpired(signToken(t, "7", time.Now().Add(time.Hour))))
	assert.True(t, IsTokenExpired("definitely.not.jwt"))
}
