package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/observability/metrics"
	"github.com/wolfman30/medbook/internal/token"
	"github.com/wolfman30/medbook/pkg/logging"
)

var (
	// ErrNoRefreshToken means there is nothing to refresh with: the user
	// never logged in, logged out, or the refresh token expired.
	ErrNoRefreshToken = errors.New("session: no usable refresh token")
	ErrNotLoggedIn    = errors.New("session: not logged in")
)

// IsTokenExpired reports whether an access token's exp claim has passed.
// Tokens that cannot be decoded count as expired.
func IsTokenExpired(raw string) bool {
	return token.IsExpired(raw)
}

// Issuer mints token pairs. *api.TokenClient satisfies it.
type Issuer interface {
	Issue(ctx context.Context, creds api.Credentials) (*api.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenPair, error)
}

// UserFetcher loads the profile for a token subject. *api.Client satisfies
// it.
type UserFetcher interface {
	GetUser(ctx context.Context, userID string) (*api.User, error)
}

// Manager is the single owner of the session. It implements api.TokenSource
// so the authenticated client reads and refreshes tokens through it.
type Manager struct {
	issuer  Issuer
	store   Store
	logger  *logging.Logger
	metrics *metrics.ClientMetrics
	now     func() time.Time

	refreshGroup singleflight.Group

	mu            sync.RWMutex
	accessToken   string
	refreshToken  string
	refreshExpiry time.Time
	user          *api.User
	state         State
	// generation changes whenever a session starts or ends, so a refresh
	// that outlives its session can tell.
	generation uint64

	ready     chan struct{}
	readyOnce sync.Once
}

var _ api.TokenSource = (*Manager)(nil)

// NewManager creates a session manager. A nil store keeps credentials in
// memory only.
func NewManager(issuer Issuer, store Store, logger *logging.Logger, m *metrics.ClientMetrics) *Manager {
	if issuer == nil {
		panic("session: issuer cannot be nil")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		issuer:  issuer,
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		ready:   make(chan struct{}),
	}
}

// AccessToken returns the in-memory access token, possibly expired.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// User returns the resolved profile, or nil before it is known.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Refresh mints a new access token. Concurrent callers share one backend
// call. The shared call is not tied to any single caller's context, but
// each caller stops waiting when its own context ends.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	leader := false
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		leader = true
		return m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared && !leader {
			m.metrics.ObserveSharedRefresh()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := Credentials{RefreshToken: m.refreshToken, RefreshTokenExpiry: m.refreshExpiry}
	gen := m.generation
	m.mu.RUnlock()

	if !current.RefreshUsable(m.now()) {
		m.metrics.ObserveRefresh("no_refresh_token")
		return "", ErrNoRefreshToken
	}

	pair, err := m.issuer.Refresh(ctx, current.RefreshToken)
	if err != nil {
		m.metrics.ObserveRefresh("error")
		return "", fmt.Errorf("session: refresh: %w", err)
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.metrics.ObserveRefresh("discarded")
		m.logger.Debug("session ended during refresh, discarding tokens")
		return "", fmt.Errorf("session: refresh: %w", ErrNotLoggedIn)
	}
	m.accessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		m.refreshToken = pair.RefreshToken
	}
	if !pair.RefreshTokenExpiryTime.IsZero() {
		m.refreshExpiry = pair.RefreshTokenExpiryTime.Time
	}
	creds := m.credentialsLocked()
	m.mu.Unlock()

	m.persist(ctx, creds)
	m.metrics.ObserveRefresh("success")
	m.logger.Debug("access token refreshed")
	return pair.AccessToken, nil
}

// Login exchanges credentials for tokens, persists them and resolves the
// profile. A profile that cannot be fetched leaves the session anonymous.
func (m *Manager) Login(ctx context.Context, creds api.Credentials, users UserFetcher) (*api.User, error) {
	pair, err := m.issuer.Issue(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("session: login: %w", err)
	}
	subject, err := token.Subject(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("session: login: %w", err)
	}

	m.mu.Lock()
	m.generation++
	m.accessToken = pair.AccessToken
	m.refreshToken = pair.RefreshToken
	m.refreshExpiry = pair.RefreshTokenExpiryTime.Time
	m.user = nil
	m.state = StateChecking
	stored := m.credentialsLocked()
	m.mu.Unlock()
	m.persist(ctx, stored)

	user, err := users.GetUser(ctx, subject)
	if err != nil {
		m.becomeAnonymous(ctx, "profile fetch failed after login", err)
		return nil, fmt.Errorf("session: login: fetch profile: %w", err)
	}
	m.becomeAuthenticated(user)
	m.logger.Info("logged in", "user_id", user.ID.String())
	return m.User(), nil
}

// Logout forgets the session in memory and in storage. It is safe to call
// more than once; the in-memory session is cleared even when storage fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.clearLocked()
	m.state = StateAnonymous
	m.mu.Unlock()
	m.markReady()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

func (m *Manager) credentialsLocked() Credentials {
	return Credentials{
		AccessToken:        m.accessToken,
		RefreshToken:       m.refreshToken,
		RefreshTokenExpiry: m.refreshExpiry,
	}
}

func (m *Manager) clearLocked() {
	m.generation++
	m.accessToken = ""
	m.refreshToken = ""
	m.refreshExpiry = time.Time{}
	m.user = nil
}

func (m *Manager) persist(ctx context.Context, creds Credentials) {
	if err := m.store.Save(ctx, creds); err != nil {
		m.logger.Warn("failed to persist session", "error", err)
	}
}
