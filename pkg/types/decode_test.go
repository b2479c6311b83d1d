package types

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItemNormalizesFieldVariants(t *testing.T) {
	t.Parallel()

	payload := `[
		{"productId": 1, "name": "Pen", "price": 10.5, "qty": 2, "image": "7"},
		{"id": "2", "productName": "Ink", "priceAmount": "3.25", "quantity": 4, "imageUrl": "https://cdn/ink.png", "checked": true},
		{"product_id": 3, "product_name": "Pad", "amount": 1}
	]`

	var items []CartItem
	require.NoError(t, json.Unmarshal([]byte(payload), &items))
	require.Len(t, items, 3)

	assert.Equal(t, "1", items[0].ProductID)
	assert.Equal(t, "Pen", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, 2, items[0].Qty)
	assert.Equal(t, images.KindID, items[0].Image.Kind)

	assert.Equal(t, "2", items[1].ProductID)
	assert.Equal(t, "Ink", items[1].Name)
	assert.True(t, items[1].Price.Equal(decimal.RequireFromString("3.25")))
	assert.Equal(t, 4, items[1].Qty)
	assert.Equal(t, images.KindURL, items[1].Image.Kind)
	assert.True(t, items[1].Selected)

	assert.Equal(t, "3", items[2].ProductID)
	assert.Equal(t, 1, items[2].Qty, "missing qty defaults to 1")
	assert.True(t, items[2].Image.IsZero())
}

func TestCartItemPrefersFirstVariant(t *testing.T) {
	t.Parallel()

	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"productId": 5, "id": 6, "price": null, "priceAmount": 9}`), &item))
	assert.Equal(t, "5", item.ProductID)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(9)), "null falls through to the next variant")
}

func TestCartItemRoundTripsThroughStore(t *testing.T) {
	t.Parallel()

	in := CartItem{ProductID: "9", Name: "Mug", Price: decimal.RequireFromString("4.99"), Qty: 3, Stock: 5, Image: images.Parse("12"), Selected: true}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out CartItem
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ProductID, out.ProductID)
	assert.True(t, in.Price.Equal(out.Price))
	assert.Equal(t, in.Qty, out.Qty)
	assert.Equal(t, in.Stock, out.Stock)
	assert.Equal(t, in.Image, out.Image)
	assert.True(t, out.Selected)
}

func TestProductDecoding(t *testing.T) {
	t.Parallel()

	payload := `{"productId":12,"categoryId":3,"productName":"Lamp","description":"warm","price":999,
		"stock":0,"image":"ImageServlet?imgId=4","images":[4,5],"discountPercent":10,"discountedPrice":899.1}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	assert.Equal(t, "12", p.ProductID)
	assert.Equal(t, "3", p.CategoryID)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, 0, p.Stock)
	assert.True(t, p.DiscountPercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, images.KindServlet, p.Image.Kind)
	require.Len(t, p.Images, 2)
	assert.Equal(t, images.Ref{Kind: images.KindID, Value: "5"}, p.Images[1])
}

func TestUserDecodingAcceptsServletShape(t *testing.T) {
	t.Parallel()

	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"name":"asha","mobile":"9876543210","email":"a@b.co","address":"x","pinCode":560001,"status":1}`), &u))
	assert.Equal(t, "4", u.UserID)
	assert.Equal(t, "9876543210", u.Phone)
	assert.Equal(t, "560001", u.Pincode)
	assert.False(t, u.IsBlocked)
	assert.False(t, u.IsAdmin())

	var admin User
	require.NoError(t, json.Unmarshal([]byte(`{"adminId":1,"username":"root","email":"r@x.io","role":"ADMIN"}`), &admin))
	assert.True(t, admin.IsAdmin())
}

func TestOrderAndCouponDecoding(t *testing.T) {
	t.Parallel()

	var orders []Order
	require.NoError(t, json.Unmarshal([]byte(`[{"orderId":7,"totalAmount":120.5,"orderDate":"Jan 1, 2025","items":[{"productName":"Pen","quantity":2,"price":10}]},{"orderId":8}]`), &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, "7", orders[0].OrderID)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)
	assert.NotNil(t, orders[1].Items)

	var v CouponValidation
	require.NoError(t, json.Unmarshal([]byte(`{"status":"ok","valid":true,"discountAmount":50,"newAmount":450}`), &v))
	assert.True(t, v.Valid)
	assert.True(t, v.NewAmount.Equal(decimal.NewFromInt(450)))

	var res PaymentResult
	require.NoError(t, json.Unmarshal([]byte(`{"status":"ok","orderId":99}`), &res))
	assert.True(t, res.OK())
	assert.Equal(t, "99", res.OrderID)
}
