package types

import "github.com/shopspring/decimal"

type Coupon struct {
	CouponID    string          `json:"couponId"`
	Code        string          `json:"code"`
	Label       string          `json:"label,omitempty"`
	MinAmount   decimal.Decimal `json:"minAmount"`
	NewUserOnly bool            `json:"newUserOnly"`
	Applicable  bool            `json:"applicable"`
}

func (c *Coupon) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*c = Coupon{
		CouponID:    f.str("couponId", "id", "coupon_id"),
		Code:        f.str("code", "couponCode"),
		Label:       f.str("label", "description"),
		MinAmount:   f.amount("minAmount", "min_amount"),
		NewUserOnly: f.boolean("newUserOnly", "new_user_only"),
		Applicable:  f.boolean("applicable"),
	}
	return nil
}

// CouponList is the listCoupons response.
type CouponList struct {
	Status  string   `json:"status"`
	Coupons []Coupon `json:"coupons"`
}

// CouponValidation is the validateCoupon response.
type CouponValidation struct {
	Status         string          `json:"status"`
	Valid          bool            `json:"valid"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
	Message        string          `json:"message,omitempty"`
}

func (c *CouponValidation) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*c = CouponValidation{
		Status:         f.str("status"),
		Valid:          f.boolean("valid"),
		DiscountAmount: f.amount("discountAmount", "discount"),
		NewAmount:      f.amount("newAmount", "finalAmount"),
		Message:        f.str("message"),
	}
	return nil
}

// PaymentResult is the PaymentServlet order placement response.
type PaymentResult struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

func (p *PaymentResult) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*p = PaymentResult{
		Status:  f.str("status"),
		OrderID: f.str("orderId", "order_id"),
		Message: f.str("message"),
	}
	return nil
}

func (p PaymentResult) OK() bool {
	return p.Status == StatusOK || p.Status == StatusSuccess
}
