package types

import (
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/shopspring/decimal"
)

// CartItem is a canonical cart line. Selected never leaves the gateway.
type CartItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Stock     int             `json:"stock,omitempty"`
	Image     images.Ref      `json:"image"`
	Selected  bool            `json:"selected"`
}

func (c *CartItem) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*c = CartItem{
		ProductID: f.str("productId", "id", "product_id"),
		Name:      f.str("name", "productName", "product_name"),
		Price:     f.amount("price", "priceAmount", "amount"),
		Selected:  f.boolean("selected", "checked"),
	}
	qty, ok := f.integer("qty", "quantity")
	if !ok {
		qty = 1
	}
	c.Qty = qty
	c.Stock, _ = f.integer("stock", "maxStock")
	if !f.into(&c.Image, "image", "imageUrl") {
		c.Image = images.Ref{Kind: images.KindNone}
	}
	return nil
}

// CartMutationResponse is the CartServlet POST body.
type CartMutationResponse struct {
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Items         []CartItem     `json:"items,omitempty"`
	UpdatedStocks map[string]int `json:"updatedStocks,omitempty"`
}

// OK reports whether the servlet accepted the mutation.
func (r CartMutationResponse) OK() bool {
	return r.Status == StatusOK
}
