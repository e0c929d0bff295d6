// Package session owns the patient's token lifecycle: bootstrap from
// persisted credentials, login, single-flight refresh and logout.
package session

import (
	"context"
	"sync"
	"time"
)

// Credentials is what survives between runs. RefreshTokenExpiry mirrors the
// server-supplied refreshTokenExpiryTime.
type Credentials struct {
	AccessToken        string    `json:"accessToken,omitempty"`
	RefreshToken       string    `json:"refreshToken,omitempty"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry,omitzero"`
}

// IsZero reports whether nothing is stored.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// RefreshUsable reports whether the refresh token can still be presented.
// A zero expiry means the server did not say, so the token is kept.
func (c Credentials) RefreshUsable(now time.Time) bool {
	if c.RefreshToken == "" {
		return false
	}
	return c.RefreshTokenExpiry.IsZero() || c.RefreshTokenExpiry.After(now)
}

// dropExpiredRefresh makes an expired refresh token read back as absent,
// the way an expired cookie disappears.
func (c Credentials) dropExpiredRefresh(now time.Time) Credentials {
	if c.RefreshToken != "" && !c.RefreshUsable(now) {
		c.RefreshToken = ""
		c.RefreshTokenExpiry = time.Time{}
	}
	return c
}

// Store persists Credentials. Load returns zero Credentials and no error
// when nothing is stored.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.dropExpiredRefresh(s.now()), nil
}

func (s *MemoryStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	return nil
}
