package cart

import (
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/pricing"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/shopspring/decimal"
)

// State is the cart snapshot kept per storefront session.
type State struct {
	Items    []types.CartItem `json:"items"`
	SyncedAt time.Time        `json:"syncedAt"`
}

// BuyNowIntent marks the product a shopper wanted to purchase right away.
type BuyNowIntent struct {
	ProductID string    `json:"productId"`
	Qty       int       `json:"qty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result is what every cart operation reports back to the caller.
type Result struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Code    pkgerrors.Code   `json:"code,omitempty"`
	Items   []types.CartItem `json:"items"`
	Count   int              `json:"count"`
	Total   decimal.Decimal  `json:"total"`
}

func newResult(items []types.CartItem) Result {
	if items == nil {
		items = []types.CartItem{}
	}
	return Result{
		Success: true,
		Items:   items,
		Count:   Count(items),
		Total:   Total(items),
	}
}

// failure turns a servlet error into a failed Result carrying the best message available.
func failure(err error, items []types.CartItem) Result {
	res := newResult(items)
	res.Success = false
	res.Code = pkgerrors.CodeDependency
	res.Message = pkgerrors.DependencyMessage
	if typed := pkgerrors.As(err); typed != nil {
		res.Code = typed.Code()
		res.Message = typed.Message()
	}
	return res
}

// Count is the sum of quantities.
func Count(items []types.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Qty
	}
	return n
}

// Total is the sum of price times quantity.
func Total(items []types.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(pricing.LineTotal(it.Price, it.Qty))
	}
	return total
}

// Selected returns the lines flagged for checkout.
func Selected(items []types.CartItem) []types.CartItem {
	out := make([]types.CartItem, 0, len(items))
	for _, it := range items {
		if it.Selected {
			out = append(out, it)
		}
	}
	return out
}

// Find returns the line for productID.
func Find(items []types.CartItem, productID string) (types.CartItem, bool) {
	for _, it := range items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return types.CartItem{}, false
}

// reconcile carries client-only fields from the previous snapshot onto a fresh server list.
// Lines new to the cart start unselected. Known stock survives unless the server reported a fresher value.
// Lines the server reports with no quantity are dropped so Count matches the server.
func reconcile(prev, fresh []types.CartItem, remaining map[string]int) []types.CartItem {
	known := make(map[string]types.CartItem, len(prev))
	for _, it := range prev {
		known[it.ProductID] = it
	}
	out := make([]types.CartItem, 0, len(fresh))
	for _, it := range fresh {
		if it.Qty < 1 {
			continue
		}
		old, seen := known[it.ProductID]
		it.Selected = seen && old.Selected
		if it.Stock == 0 && seen {
			it.Stock = old.Stock
		}
		if left, ok := remaining[it.ProductID]; ok && left >= 0 {
			it.Stock = it.Qty + left
		}
		out = append(out, it)
	}
	return out
}

// applyIntent selects exactly the buy-now product when it is in the cart.
func applyIntent(items []types.CartItem, intent BuyNowIntent) bool {
	if _, ok := Find(items, intent.ProductID); !ok {
		return false
	}
	for i := range items {
		items[i].Selected = items[i].ProductID == intent.ProductID
	}
	return true
}
