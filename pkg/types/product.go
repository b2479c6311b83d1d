package types

import (
	"encoding/json"

	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/shopspring/decimal"
)

// Product is the canonical catalog entry.
type Product struct {
	ProductID       string          `json:"productId"`
	CategoryID      string          `json:"categoryId,omitempty"`
	CategoryName    string          `json:"categoryName,omitempty"`
	Name            string          `json:"productName"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	Rating          float64         `json:"rating,omitempty"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Image           images.Ref      `json:"image"`
	Images          []images.Ref    `json:"images,omitempty"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*p = Product{
		ProductID:       f.str("productId", "id", "product_id"),
		CategoryID:      f.str("categoryId", "category_id", "catId"),
		CategoryName:    f.str("categoryName", "categoryname", "category_name", "catName"),
		Name:            f.str("productName", "name", "product_name"),
		Description:     f.str("description", "desc"),
		Price:           f.amount("price", "productPrice", "priceAmount", "amount"),
		DiscountPercent: f.amount("discountPercent", "discount_percent", "discount"),
	}
	p.Stock, _ = f.integer("stock", "qty")
	if r, ok := f.raw("rating", "avgRating", "averageRating"); ok {
		_ = json.Unmarshal(r, &p.Rating)
	}
	if !f.into(&p.Image, "image", "imageUrl", "image_url", "img") {
		p.Image = images.Ref{Kind: images.KindNone}
	}
	f.into(&p.Images, "images", "imageIds")
	return nil
}

// Category is a catalog grouping.
type Category struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"categoryName"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*c = Category{
		CategoryID: f.str("categoryId", "category_id", "id", "catId"),
		Name:       f.str("categoryName", "category_name", "name", "catName"),
	}
	return nil
}
