package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID     string          `json:"orderId"`
	OrderDate   string          `json:"orderDate,omitempty"`
	Status      string          `json:"status,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Customer    string          `json:"customer,omitempty"`
	Items       []OrderItem     `json:"items"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*o = Order{
		OrderID:     f.str("orderId", "id", "order_id"),
		OrderDate:   f.str("orderDate", "order_date", "createdAt"),
		Status:      f.str("status"),
		TotalAmount: f.amount("totalAmount", "total_amount", "amount", "total"),
		Customer:    f.str("username", "customer", "userName", "email"),
	}
	f.into(&o.Items, "items", "orderItems")
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return nil
}

type OrderItem struct {
	ProductID   string          `json:"productId,omitempty"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i *OrderItem) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*i = OrderItem{
		ProductID:   f.str("productId", "product_id", "id"),
		ProductName: f.str("productName", "product_name", "name"),
		Price:       f.amount("price", "priceAmount", "amount"),
	}
	i.Quantity, _ = f.integer("quantity", "qty")
	return nil
}

// PlacedOrder is the receipt kept after a payment succeeds.
type PlacedOrder struct {
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
	Coupon   string          `json:"couponCode,omitempty"`
	PlacedAt time.Time       `json:"placedAt"`
	// Late is set when the servlet confirmed the order after the countdown had expired.
	Late bool `json:"late,omitempty"`
}
