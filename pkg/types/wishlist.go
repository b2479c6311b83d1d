package types

// WishlistMutationResponse is the WishlistServlet POST body.
type WishlistMutationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Added   bool   `json:"added,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Count   int    `json:"count"`
}

func (r WishlistMutationResponse) OK() bool {
	return r.Status == StatusOK || r.Status == StatusSuccess
}

// WishlistCount is returned for count=1 lookups.
type WishlistCount struct {
	Count int `json:"count"`
}

// WishlistCheck is returned for check=<productId> lookups.
type WishlistCheck struct {
	InWishlist bool `json:"inWishlist"`
}

// WishlistItem is a saved product. WishlistServlet returns full product rows.
type WishlistItem = Product
