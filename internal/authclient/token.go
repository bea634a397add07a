// Package authclient tracks bearer-token expiry on the client side, reusing
// the mutex+TTL cache shape of the teacher's internal/auth.jwksCache but for
// a different question: not "is this signature valid" (the server's job),
// rather "is it time to ask for a fresh token before the transport rejects
// one as expired".
package authclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the current bearer token and lets the engine request
// a new one ahead of expiry.
type TokenSource interface {
	Token() string
	Refresh() (string, error)
}

// ExpiryTracker caches the parsed expiry of the last token it was handed, so
// repeated checks don't re-parse the JWT on every call.
type ExpiryTracker struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	skew      time.Duration
}

// NewExpiryTracker builds a tracker that treats a token as due for refresh
// skew before its exp claim, matching the JWKS cache's "refresh ahead of
// expiry, not after" posture.
func NewExpiryTracker(skew time.Duration) *ExpiryTracker {
	return &ExpiryTracker{skew: skew}
}

// Observe records token's expiry claim, if present and parseable. It does
// not validate the signature: the client has no way to, and doesn't need
// to — it only needs to know when to ask for a new one.
func (t *ExpiryTracker) Observe(token string) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
	t.expiresAt = time.Time{}
	if err == nil {
		if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
			t.expiresAt = exp.Time
		}
	}
}

// NeedsRefresh reports whether no token has been observed yet or the
// last-observed token is within skew of expiring. A token with no readable
// expiry claim never reports as needing refresh.
func (t *ExpiryTracker) NeedsRefresh(now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == "" {
		return true
	}
	if t.expiresAt.IsZero() {
		return false
	}
	return !now.Before(t.expiresAt.Add(-t.skew))
}
