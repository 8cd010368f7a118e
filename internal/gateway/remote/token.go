package remote

import (
	"sync"
	"time"
)

const (
	// RefreshMargin is how long before expiry a cached token is renewed.
	RefreshMargin = 60 * time.Second
	// DefaultTokenTTL applies when the token endpoint reports no lifetime.
	DefaultTokenTTL = 7200 * time.Second

	// absoluteExpiryThreshold separates relative lifetimes from absolute
	// unix timestamps in expires_in.
	absoluteExpiryThreshold = 10 * 365 * 24 * 60 * 60
)

// TokenSession holds the bearer token of one Gateway. It is created with the
// gateway, refreshed when within RefreshMargin of expiry and cleared by Close.
// Two concurrent refreshes may both store a token; the last one wins.
type TokenSession struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Valid returns the cached token if it is still usable at now.
func (s *TokenSession) Valid(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" || !now.Before(s.expiresAt.Add(-RefreshMargin)) {
		return "", false
	}
	return s.token, true
}

// Current returns the cached token regardless of expiry, for renewal requests.
func (s *TokenSession) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *TokenSession) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *TokenSession) Store(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
}

func (s *TokenSession) Clear() {
	s.Store("", time.Time{})
}

// expiryFrom computes the expiry for an expires_in value reported at now.
func expiryFrom(expiresIn int64, ok bool, now time.Time) time.Time {
	switch {
	case !ok || expiresIn <= 0:
		return now.Add(DefaultTokenTTL)
	case expiresIn > absoluteExpiryThreshold:
		return time.Unix(expiresIn, 0)
	default:
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
}
