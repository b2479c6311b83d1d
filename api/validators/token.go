package validators

import (
	"errors"
	"net/http"
	"strings"
)

// TokenHeader carries the storefront session token for clients that do not keep cookies.
const TokenHeader = "X-Storefront-Token"

var ErrMissingToken = errors.New("session token missing")

// SessionToken pulls the raw session token from the token header, a bearer Authorization header
// or the named cookie, in that order.
func SessionToken(r *http.Request, cookieName string) (string, error) {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token, nil
	}
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
			if token := strings.TrimSpace(raw[7:]); token != "" {
				return token, nil
			}
		}
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && strings.TrimSpace(c.Value) != "" {
			return strings.TrimSpace(c.Value), nil
		}
	}
	return "", ErrMissingToken
}
