// Package token decodes the claims of backend-issued access tokens.
//
// The client never holds the signing key, so tokens are parsed without
// signature verification. Only the backend's acceptance of a token is
// authoritative; these helpers exist to decide locally whether a token is
// worth sending.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingClaim is returned when a decodable token lacks a claim the
// caller asked for.
var ErrMissingClaim = errors.New("token: missing claim")

var parser = jwt.NewParser()

// IsExpired reports whether raw is expired right now. Anything that cannot
// be decoded counts as expired.
func IsExpired(raw string) bool {
	return IsExpiredAt(raw, time.Now())
}

// IsExpiredAt reports whether raw's exp claim is at or before now.
func IsExpiredAt(raw string, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !exp.After(now)
}

// ExpiresAt returns the exp claim of raw.
func ExpiresAt(raw string) (time.Time, error) {
	claims, err := decode(raw)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("token: read exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	return exp.Time, nil
}

// Subject returns the sub claim of raw, which the backend sets to the user id.
func Subject(raw string) (string, error) {
	claims, err := decode(raw)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("token: read sub: %w", err)
	}
	if strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

func decode(raw string) (jwt.MapClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("token: empty token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("token: decode: %w", err)
	}
	return claims, nil
}
