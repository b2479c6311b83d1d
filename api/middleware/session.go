package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	"github.com/angelmondragon/storefront-gateway/api/validators"
	pkgAuth "github.com/angelmondragon/storefront-gateway/pkg/auth"
	"github.com/angelmondragon/storefront-gateway/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
)

// Session binds every request to a storefront session. A missing, invalid or expired token starts a
// fresh session; tokens in the last quarter of their lifetime are re-issued for the same session.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return sessionWithClock(cfg, logg, time.Now)
}

func sessionWithClock(cfg config.SessionConfig, logg *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			issuedAt := now()

			var sessionID string
			reissue := true
			if raw, err := validators.SessionToken(r, cfg.CookieName); err == nil {
				claims, parseErr := pkgAuth.ParseSessionToken(cfg, raw)
				switch {
				case parseErr != nil:
					if logg != nil {
						logg.Debug(logg.WithField(ctx, "reason", parseErr.Error()), "session.token_rejected")
					}
				default:
					sessionID = claims.SessionID
					reissue = claims.ExpiresAt == nil || claims.ExpiresAt.Time.Sub(issuedAt) < cfg.TTL/4
				}
			}
			if sessionID == "" {
				sessionID = pkgAuth.NewSessionID()
			}

			if reissue {
				token, err := pkgAuth.MintSessionToken(cfg, issuedAt, sessionID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue session token"))
					return
				}
				w.Header().Set(validators.TokenHeader, token)
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Expires:  issuedAt.Add(cfg.TTL),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = WithSessionID(ctx, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
