package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
)

// Gate restores the session snapshot and refuses the request when the audience does not match.
// The refusal carries the redirect the UI should follow.
func Gate(access session.Access, store *statestore.Store, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID := SessionIDFromContext(ctx)
			if sessionID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
				return
			}

			snap, err := session.Load(ctx, store.Session(sessionID))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil && snap.User != nil {
				ctx = logg.WithUserID(ctx, snap.User.UserID)
				if snap.IsAdmin {
					ctx = logg.WithActorRole(ctx, "admin")
				}
			}
			if err := session.Refusal(session.Gate(snap, access)); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSnapshot(ctx, snap)))
		})
	}
}
