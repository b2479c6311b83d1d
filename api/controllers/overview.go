package controllers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	cartsvc "github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	"github.com/angelmondragon/storefront-gateway/internal/wishlist"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
)

type overviewResponse struct {
	Session       session.Snapshot `json:"session"`
	CartCount     int              `json:"cartCount"`
	WishlistCount int              `json:"wishlistCount"`
	// Partial is set when a badge could not be refreshed and shows zero.
	Partial bool `json:"partial,omitempty"`
}

// Overview serves the header: who is signed in plus the cart and wishlist badges, fetched in parallel.
func Overview(sessions session.Service, carts cartsvc.Service, wishlists wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil || carts == nil || wishlists == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("overview"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := sessions.Restore(r.Context(), sid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := overviewResponse{Session: snap}
		if snap.Anonymous() || snap.Blocked() || snap.IsAdmin {
			responses.WriteSuccess(w, resp)
			return
		}

		var cartErr, wishlistErr error
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			result, err := carts.FetchCart(ctx, sid)
			if err != nil {
				cartErr = err
				return nil
			}
			resp.CartCount = result.Count
			return nil
		})
		g.Go(func() error {
			count, err := wishlists.GetWishlistCount(ctx, sid)
			if err != nil {
				wishlistErr = err
				return nil
			}
			resp.WishlistCount = count
			return nil
		})
		_ = g.Wait()

		for _, err := range []error{cartErr, wishlistErr} {
			if err != nil {
				resp.Partial = true
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "reason", err.Error()), "overview.badge_failed")
				}
			}
		}
		responses.WriteSuccess(w, resp)
	}
}
