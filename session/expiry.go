package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The backend writes naive ISO timestamps in server local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseExpiry accepts RFC 3339 and the backend's naive timestamps, the latter
// read in local time.
func ParseExpiry(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExpiryFromToken reads the exp claim without verifying the signature. The
// client only needs it to schedule refreshes.
func ExpiryFromToken(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// expiryOrDerived returns the backend supplied expiry, or one derived from the
// token's exp claim when the backend left it out.
func expiryOrDerived(expires, token string) string {
	if expires != "" {
		return expires
	}
	if exp, ok := ExpiryFromToken(token); ok {
		return exp.Format(time.RFC3339)
	}
	return ""
}
