package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"past exp", sign(t, jwt.MapClaims{"sub": "7", "exp": now.Add(-time.Minute).Unix()}), true},
		{"long past exp", sign(t, jwt.MapClaims{"sub": "7", "exp": now.Add(-72 * time.Hour).Unix()}), true},
		{"future exp", sign(t, jwt.MapClaims{"sub": "7", "exp": now.Add(time.Hour).Unix()}), false},
		{"no exp claim", sign(t, jwt.MapClaims{"sub": "7"}), true},
		{"garbage", "not-a-jwt", true},
		{"empty", "", true},
		{"bad payload segment", "aGVhZGVy.%%%.c2ln", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.token))
		})
	}
}

func TestIsExpiredAtBoundary(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0)
	raw := sign(t, jwt.MapClaims{"exp": exp.Unix()})

	assert.True(t, IsExpiredAt(raw, exp), "exp equal to now counts as expired")
	assert.False(t, IsExpiredAt(raw, exp.Add(-time.Second)))
	assert.True(t, IsExpiredAt(raw, exp.Add(time.Second)))
}

func TestSignatureIsNotChecked(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("someone-elses-secret"))
	require.NoError(t, err)

	assert.False(t, IsExpired(raw))
	sub, err := Subject(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestSubject(t *testing.T) {
	_, err := Subject(sign(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}))
	assert.ErrorIs(t, err, ErrMissingClaim)

	_, err = Subject("nope")
	assert.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	got, err := ExpiresAt(sign(t, jwt.MapClaims{"exp": exp.Unix()}))
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}
