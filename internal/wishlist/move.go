package wishlist

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
)

// MoveResult reports both halves of a move to the cart.
type MoveResult struct {
	Success     bool           `json:"success"`
	Partial     bool           `json:"partial"`
	Compensated bool           `json:"compensated"`
	Message     string         `json:"message,omitempty"`
	Code        pkgerrors.Code `json:"code,omitempty"`
	Cart        cart.Result    `json:"cart"`
	Wishlist    Result         `json:"wishlist"`
}

// MoveToCart adds one unit to the cart and then removes the product from the wishlist.
// When the removal fails the keep_both policy leaves the product in both lists and reports
// Partial; the compensate policy puts the cart line back to what it was.
func (s *service) MoveToCart(ctx context.Context, sessionID, productID string) (MoveResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return MoveResult{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	sess, _, err := s.open(ctx, sessionID)
	if err != nil {
		return MoveResult{}, err
	}
	logCtx := s.logg.WithField(ctx, "product_id", productID)

	before, err := s.cart.FetchCart(ctx, sessionID)
	if err != nil {
		return MoveResult{}, err
	}
	priorQty := 0
	if line, ok := cart.Find(before.Items, productID); ok {
		priorQty = line.Qty
	}

	added, err := s.cart.AddToCart(ctx, sessionID, productID, 1)
	if err != nil {
		return MoveResult{}, err
	}
	if !added.Success {
		return MoveResult{
			Message:  added.Message,
			Code:     added.Code,
			Cart:     added,
			Wishlist: newResult(s.cached(ctx, sess)),
		}, nil
	}

	removed, err := s.RemoveFromWishlist(ctx, sessionID, productID)
	if err != nil {
		return MoveResult{}, err
	}
	if removed.Success {
		return MoveResult{Success: true, Cart: added, Wishlist: removed}, nil
	}

	s.logg.Warn(logCtx, "wishlist.move_partial")
	out := MoveResult{
		Partial:  true,
		Message:  removed.Message,
		Code:     removed.Code,
		Cart:     added,
		Wishlist: removed,
	}
	if s.movePolicy != PolicyCompensate {
		return out, nil
	}

	var undo cart.Result
	if priorQty > 0 {
		undo, err = s.cart.UpdateQuantity(ctx, sessionID, productID, priorQty)
	} else {
		undo, err = s.cart.RemoveFromCart(ctx, sessionID, productID)
	}
	if err != nil {
		return MoveResult{}, err
	}
	out.Cart = undo
	out.Compensated = undo.Success
	out.Partial = !undo.Success
	if !undo.Success {
		s.logg.Warn(logCtx, "wishlist.move_compensation_failed")
	}
	return out, nil
}
