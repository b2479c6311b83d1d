package statestore

// Key names one slot of per-session client state.
type Key string

const (
	KeyUser              Key = "user"
	KeyIsAdmin           Key = "is_admin"
	KeyActiveSession     Key = "active_session"
	KeyUpstreamCookies   Key = "upstream_cookies"
	KeyCart              Key = "cart"
	KeyBuyNow            Key = "buy_now"
	KeyWishlist          Key = "wishlist"
	KeyCheckout          Key = "checkout"
	KeyPaymentInProgress Key = "payment_in_progress"
	KeyLastOrder         Key = "last_order"
)

// SessionKeys is every fixed key a signed-in session may own. Logout clears all of them.
var SessionKeys = []Key{
	KeyUser,
	KeyIsAdmin,
	KeyActiveSession,
	KeyUpstreamCookies,
	KeyCart,
	KeyBuyNow,
	KeyWishlist,
	KeyCheckout,
	KeyPaymentInProgress,
	KeyLastOrder,
}

// WishlistPendingKey guards an in-flight wishlist toggle for one product.
func WishlistPendingKey(productID string) Key {
	return Key("wishlist_pending:" + productID)
}
