package checkout

import (
	"strings"
	"time"

	"github.com/angelmondragon/storefront-gateway/pkg/pricing"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/shopspring/decimal"
)

// Phase is where a session's checkout stands.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAddress    Phase = "address_collection"
	PhaseCoupon     Phase = "coupon_optional"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
	PhaseTimedOut   Phase = "timed_out"
)

// NextOrders is where the UI goes after a successful payment.
const NextOrders = "/orders"

// canPay reports whether a payment may be submitted from this phase.
func (p Phase) canPay() bool {
	return p == PhaseCoupon || p == PhaseFailed || p == PhaseTimedOut
}

// Line is one cart line carried into checkout.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Total     decimal.Decimal `json:"total"`
}

func linesFrom(items []types.CartItem) ([]Line, decimal.Decimal) {
	lines := make([]Line, 0, len(items))
	amount := decimal.Zero
	for _, it := range items {
		total := pricing.LineTotal(it.Price, it.Qty)
		lines = append(lines, Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Qty:       it.Qty,
			Total:     total,
		})
		amount = amount.Add(total)
	}
	return lines, amount
}

// Delivery is the address snapshot taken before payment.
type Delivery struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,phone10"`
	Address string `json:"address" validate:"required"`
	Pincode string `json:"pincode" validate:"required,pincode"`
}

func (d Delivery) normalized() Delivery {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.Pincode = strings.TrimSpace(d.Pincode)
	return d
}

// AppliedCoupon is the single coupon active on a checkout.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
}

// Attempt is the in-flight payment marker. It lives under its own key so it can be claimed atomically.
type Attempt struct {
	AttemptID string    `json:"attemptId"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// State is the checkout kept per storefront session.
type State struct {
	Phase     Phase           `json:"phase"`
	Items     []Line          `json:"items"`
	Amount    decimal.Decimal `json:"amount"`
	Delivery  *Delivery       `json:"delivery,omitempty"`
	Coupon    *AppliedCoupon  `json:"coupon,omitempty"`
	AttemptID string          `json:"attemptId,omitempty"`
	Message   string          `json:"message,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Payable is the amount after the active coupon.
func (s State) Payable() decimal.Decimal {
	if s.Coupon != nil {
		return s.Coupon.NewAmount
	}
	return s.Amount
}

// Status is the checkout as shown to the shopper.
type Status struct {
	Phase            Phase           `json:"phase"`
	Items            []Line          `json:"items"`
	Amount           decimal.Decimal `json:"amount"`
	Payable          decimal.Decimal `json:"payable"`
	Delivery         *Delivery       `json:"delivery,omitempty"`
	Coupon           *AppliedCoupon  `json:"coupon,omitempty"`
	RemainingSeconds int             `json:"remainingSeconds"`
	Message          string          `json:"message,omitempty"`
	OrderID          string          `json:"orderId,omitempty"`
	Next             string          `json:"next,omitempty"`
}

func statusOf(st State) Status {
	if st.Phase == "" {
		st.Phase = PhaseIdle
	}
	items := st.Items
	if items == nil {
		items = []Line{}
	}
	out := Status{
		Phase:    st.Phase,
		Items:    items,
		Amount:   st.Amount,
		Payable:  st.Payable(),
		Delivery: st.Delivery,
		Coupon:   st.Coupon,
		Message:  st.Message,
		OrderID:  st.OrderID,
	}
	if st.Phase == PhaseSuccess {
		out.Next = NextOrders
	}
	return out
}

// remainingSeconds rounds up so a countdown never shows 0 while the attempt is still live.
func remainingSeconds(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}
