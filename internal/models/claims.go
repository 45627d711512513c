package models

import (
	"time"

	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/golang-jwt/jwt/v4"
)

// DefaultExpiryBuffer is the window before a token's expiry within which the
// token is treated as expiring soon and refreshed proactively.
const DefaultExpiryBuffer = 120 * time.Second

// DefaultCacheFreshness is how long a cached access token may be served
// without consulting the token repository again.
const DefaultCacheFreshness = 5 * time.Minute

// TokenClaims are the claims the dashboard backend mints into its access
// tokens. The gateway decodes them without verifying any signature - the
// backend remains the only authorization boundary, these values only gate
// UX decisions like proactive refreshes.
type TokenClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var claimsParser = jwt.NewParser()

// ParseTokenClaims decodes the self-describing claims of a raw token without
// verifying its signature. Malformed input yields gwerrors.ErrTokenParse,
// it never panics.
func ParseTokenClaims(raw string) (TokenClaims, error) {
	claims := TokenClaims{}
	_, _, err := claimsParser.ParseUnverified(raw, &claims)
	if err != nil {
		return TokenClaims{}, gwerrors.ErrTokenParse
	}
	return claims, nil
}

// TokenExpired fails closed: a token that cannot be decoded or carries no
// expiry claim counts as expired.
func TokenExpired(raw string) bool {
	claims, err := ParseTokenClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(time.Now())
}

// TokenExpiresSoon fails closed like TokenExpired. A token whose expiry falls
// at or before now + buffer is considered expiring soon.
func TokenExpiresSoon(raw string, buffer time.Duration) bool {
	claims, err := ParseTokenClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(time.Now().Add(buffer))
}
