package auth

import "github.com/golang-jwt/jwt/v5"

// SessionClaims identify one storefront session. User identity lives in the state store, not the token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
