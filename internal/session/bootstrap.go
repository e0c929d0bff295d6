package session

import (
	"context"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/token"
)

// State is where the session is in its bootstrap lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateChecking
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsInitializing is true until the first bootstrap or login settles.
func (m *Manager) IsInitializing() bool {
	s := m.State()
	return s == StateUninitialized || s == StateChecking
}

// Ready is closed once the session first reaches Authenticated or
// Anonymous.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Bootstrap resolves the persisted session. It reads stored credentials,
// refreshes a stale access token, decodes the subject and fetches the
// profile. Any failure along the way leaves the session anonymous. Calling
// it again after it has started returns the current state.
func (m *Manager) Bootstrap(ctx context.Context, users UserFetcher) State {
	m.mu.Lock()
	if m.state != StateUninitialized {
		s := m.state
		m.mu.Unlock()
		return s
	}
	m.state = StateChecking
	m.mu.Unlock()

	creds, err := m.store.Load(ctx)
	if err != nil {
		m.becomeAnonymous(ctx, "could not read stored session", err)
		return StateAnonymous
	}
	if creds.IsZero() {
		m.becomeAnonymous(ctx, "no stored session", nil)
		return StateAnonymous
	}

	m.mu.Lock()
	m.accessToken = creds.AccessToken
	m.refreshToken = creds.RefreshToken
	m.refreshExpiry = creds.RefreshTokenExpiry
	m.mu.Unlock()

	access := creds.AccessToken
	if access == "" || IsTokenExpired(access) {
		access, err = m.Refresh(ctx)
		if err != nil {
			m.becomeAnonymous(ctx, "stored session could not be refreshed", err)
			return StateAnonymous
		}
	}

	subject, err := token.Subject(access)
	if err != nil {
		m.becomeAnonymous(ctx, "access token has no subject", err)
		return StateAnonymous
	}
	user, err := users.GetUser(ctx, subject)
	if err != nil {
		m.becomeAnonymous(ctx, "profile fetch failed", err)
		return StateAnonymous
	}
	m.becomeAuthenticated(user)
	return StateAuthenticated
}

func (m *Manager) becomeAuthenticated(user *api.User) {
	m.mu.Lock()
	m.user = user
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.markReady()
}

func (m *Manager) becomeAnonymous(ctx context.Context, reason string, cause error) {
	if cause != nil {
		m.logger.Info("session is anonymous", "reason", reason, "error", cause)
	} else {
		m.logger.Debug("session is anonymous", "reason", reason)
	}
	if err := m.Logout(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("failed to clear stored session", "error", err)
	}
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}
