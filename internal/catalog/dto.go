package catalog

import (
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/pricing"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/shopspring/decimal"
)

// ProductDTO is a catalog entry with its derived display fields.
type ProductDTO struct {
	ProductID       string          `json:"productId"`
	CategoryID      string          `json:"categoryId,omitempty"`
	CategoryName    string          `json:"categoryName,omitempty"`
	Name            string          `json:"productName"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	HasDiscount     bool            `json:"hasDiscount"`
	Stock           int             `json:"stock"`
	OutOfStock      bool            `json:"outOfStock"`
	CanPurchase     bool            `json:"canPurchase"`
	Rating          float64         `json:"rating"`
	ImageURL        string          `json:"imageUrl"`
	Gallery         []string        `json:"gallery,omitempty"`
}

// DiscountedPrice is the price after the product's percentage discount, rounded to cents.
func DiscountedPrice(p types.Product) decimal.Decimal {
	return pricing.DiscountedPrice(p.Price, p.DiscountPercent)
}

func OutOfStock(p types.Product) bool {
	return p.Stock <= 0
}

func CanPurchase(p types.Product) bool {
	return !OutOfStock(p)
}

func HasDiscount(p types.Product) bool {
	return p.DiscountPercent.GreaterThan(decimal.Zero)
}

// NewProductDTO derives the display fields for p.
func NewProductDTO(p types.Product, resolver images.Resolver) ProductDTO {
	return ProductDTO{
		ProductID:       p.ProductID,
		CategoryID:      p.CategoryID,
		CategoryName:    p.CategoryName,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price.Round(2),
		DiscountPercent: p.DiscountPercent,
		DiscountedPrice: DiscountedPrice(p),
		HasDiscount:     HasDiscount(p),
		Stock:           p.Stock,
		OutOfStock:      OutOfStock(p),
		CanPurchase:     CanPurchase(p),
		Rating:          p.Rating,
		ImageURL:        resolver.URL(p.Image, p.ProductID),
		Gallery:         resolver.URLs(p.Images, p.ProductID),
	}
}
