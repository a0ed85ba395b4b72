package remote

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/colonyops/inbox/internal/core/notify"
)

// TokenExpiry reads the exp claim of a JWT session token without verifying
// its signature; the backend does that. ok is false for opaque tokens and
// tokens without an expiry.
func TokenExpiry(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// CheckToken fails fast with an AuthError when the token is a JWT that has
// already expired, saving a round trip that would end in a 401.
func CheckToken(op, token string, now time.Time) error {
	exp, ok := TokenExpiry(token)
	if !ok || now.Before(exp) {
		return nil
	}
	return &notify.AuthError{Op: op, Message: "session token expired at " + exp.UTC().Format(time.RFC3339)}
}
