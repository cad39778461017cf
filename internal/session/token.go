package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// now is swapped in tests
var now = time.Now

// TokenExpiry reads the exp claim of a JWT without verifying the signature.
// ok is false for tokens that are not JWTs or carry no expiry.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// TokenExpired reports whether token carries an exp claim in the past.
// Opaque tokens are never considered expired; the backend decides.
func TokenExpired(token string) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now().Before(exp)
}
