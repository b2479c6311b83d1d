package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/metrics"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet/servlettest"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sid = "s1"

// payments is a scripted PaymentServlet.
type payments struct {
	mu       sync.Mutex
	hold     chan struct{}
	reply    map[string]any
	status   int
	requests []map[string]any
}

func (p *payments) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Query().Get("action") {
	case "listCoupons":
		servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok", "coupons": []map[string]any{
			{"couponId": 1, "code": "SAVE10", "label": "10% off", "minAmount": 300, "newUserOnly": false, "applicable": true},
		}})
		return
	case "validateCoupon":
		amount, _ := body["amount"].(float64)
		switch body["code"] {
		case "SAVE10":
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok", "valid": true, "discountAmount": amount * 0.1, "newAmount": amount * 0.9})
		case "FLAT100":
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok", "valid": true, "discountAmount": 100, "newAmount": amount - 100})
		default:
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "error", "valid": false, "message": "Invalid coupon code"})
		}
		return
	}

	p.mu.Lock()
	p.requests = append(p.requests, body)
	hold, reply, status := p.hold, p.reply, p.status
	p.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if reply == nil {
		reply = map[string]any{"status": "ok", "orderId": 9001, "message": "Order placed"}
	}
	if status == 0 {
		status = http.StatusOK
	}
	servlettest.JSON(w, status, reply)
}

func (p *payments) last() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

type fixture struct {
	svc      Service
	carts    cart.Service
	fake     *servlettest.Fake
	store    *statestore.Store
	payments *payments
}

func newFixture(t *testing.T, timeout time.Duration) fixture {
	t.Helper()
	fake := servlettest.New(t)
	shop := servlettest.NewShop(fake)
	shop.AddProduct(servlettest.Product{ID: "101", Name: "Desk Lamp", Price: 200, Stock: 5})
	shop.AddProduct(servlettest.Product{ID: "102", Name: "Mug", Price: 100, Stock: 5})
	pay := &payments{}
	fake.Handle(servlet.EndpointPayment, pay.handle)

	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, statestore.Save(context.Background(), store.Session(sid), statestore.KeyUser, types.User{UserID: "7", Email: "asha@shop.in"}))

	client := fake.Client(t)
	carts, err := cart.NewService(cart.ServiceParams{Servlet: client, Store: store})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Servlet:        client,
		Store:          store,
		Cart:           carts,
		Metrics:        metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		PaymentTimeout: timeout,
	})
	require.NoError(t, err)
	return fixture{svc: svc, carts: carts, fake: fake, store: store, payments: pay}
}

// ready fills the cart with 500.00 worth of selected items and walks to the coupon step.
func (f fixture) ready(t *testing.T) Status {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, sid, "101", 2)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, sid, "102", 1)
	require.NoError(t, err)
	_, err = f.carts.SelectAll(ctx, sid, true)
	require.NoError(t, err)

	st, err := f.svc.Begin(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, PhaseAddress, st.Phase)
	require.Equal(t, "500.00", st.Amount.StringFixed(2))

	st, err = f.svc.SubmitAddress(ctx, sid, validDelivery())
	require.NoError(t, err)
	require.Equal(t, PhaseCoupon, st.Phase)
	return st
}

func (f fixture) cartGets() int {
	n := 0
	for _, c := range f.fake.Calls(servlet.EndpointCart) {
		if c.Method == http.MethodGet {
			n++
		}
	}
	return n
}

func validDelivery() Delivery {
	return Delivery{Name: "Asha Rao", Phone: "9876543210", Address: "12 MG Road, Bengaluru", Pincode: "560001"}
}

func validCard() PaymentInput {
	return PaymentInput{Method: MethodCard, Card: &CardDetails{
		CardHolder: "Asha Rao",
		CardNumber: "4111 1111 1111 1111",
		ExpMonth:   12,
		ExpYear:    time.Now().Year() + 2,
		CVV:        "123",
	}}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBeginRequiresSelection(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, sid, "101", 1)
	require.NoError(t, err)

	_, err = f.svc.Begin(ctx, sid)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBeginRefusesAnonymous(t *testing.T) {
	f := newFixture(t, time.Second)
	_, err := f.svc.Begin(context.Background(), "anon")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestSubmitAddressValidates(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	_, err := f.svc.SubmitAddress(ctx, sid, validDelivery())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	bad := validDelivery()
	bad.Phone = "98765"
	bad.Pincode = "56001"
	_, err = f.svc.SubmitAddress(ctx, sid, bad)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "phone")
	assert.Contains(t, details, "pincode")
}

func TestCouponReplacesInsteadOfStacking(t *testing.T) {
	f := newFixture(t, time.Second)
	f.ready(t)
	ctx := context.Background()

	st, err := f.svc.ApplyCoupon(ctx, sid, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "450.00", st.Payable.StringFixed(2))

	st, err = f.svc.ApplyCoupon(ctx, sid, "FLAT100")
	require.NoError(t, err)
	assert.Equal(t, "400.00", st.Payable.StringFixed(2))
	assert.Equal(t, "FLAT100", st.Coupon.Code)

	_, err = f.svc.ApplyCoupon(ctx, sid, "BOGUS")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, "Invalid coupon code", pkgerrors.As(err).Message())

	st, err = f.svc.Status(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "FLAT100", st.Coupon.Code)

	st, err = f.svc.RemoveCoupon(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, st.Coupon)
	assert.Equal(t, "500.00", st.Payable.StringFixed(2))
}

func TestListCoupons(t *testing.T) {
	f := newFixture(t, time.Second)
	got, err := f.svc.ListCoupons(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SAVE10", got[0].Code)
	assert.True(t, got[0].Applicable)
}

func TestPaymentInputValidation(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, validCard().check(now))

	bad := validCard()
	bad.Card.CardNumber = "4111111111111112"
	assert.True(t, pkgerrors.IsCode(bad.check(now), pkgerrors.CodeValidation))

	expired := validCard()
	expired.Card.ExpYear = 2026
	expired.Card.ExpMonth = 5
	assert.Error(t, expired.check(now))

	tooFar := validCard()
	tooFar.Card.ExpYear = 2047
	assert.Error(t, tooFar.check(now))

	assert.Error(t, PaymentInput{Method: MethodCard}.check(now))
	assert.NoError(t, PaymentInput{Method: MethodUPI, UPI: "asha@okbank"}.check(now))
	assert.Error(t, PaymentInput{Method: MethodUPI, UPI: "asha"}.check(now))
	assert.Error(t, PaymentInput{Method: "cash"}.check(now))

	stray := PaymentInput{Method: MethodUPI, UPI: "asha@okbank", Card: &CardDetails{CardNumber: "1234"}}
	assert.NoError(t, stray.check(now))
	assert.NoError(t, PaymentInput{Method: " UPI ", UPI: "asha@okbank"}.check(now))
}

func TestPaySucceedsAndRecordsOrder(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	f.ready(t)
	ctx := context.Background()
	_, err := f.svc.ApplyCoupon(ctx, sid, "SAVE10")
	require.NoError(t, err)
	gets := f.cartGets()

	st, err := f.svc.Pay(ctx, sid, validCard())
	require.NoError(t, err)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, "9001", st.OrderID)
	assert.Equal(t, NextOrders, st.Next)
	assert.Empty(t, st.Items)
	assert.Greater(t, f.cartGets(), gets)

	body := f.payments.last()
	require.NotNil(t, body)
	assert.Equal(t, 450.0, body["amount"])
	assert.Equal(t, 500.0, body["originalAmount"])
	assert.Equal(t, []any{101.0, 102.0}, body["selectedItems"])
	assert.Equal(t, "card", body["method"])
	assert.Equal(t, "SAVE10", body["couponCode"])

	sess := f.store.Session(sid)
	order, ok, err := statestore.Load[types.PlacedOrder](ctx, sess, statestore.KeyLastOrder)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "9001", order.OrderID)
	assert.Equal(t, "450.00", order.Amount.StringFixed(2))
	assert.False(t, order.Late)

	_, held, err := statestore.Load[Attempt](ctx, sess, statestore.KeyPaymentInProgress)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPayFailureAllowsRetry(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	f.ready(t)
	ctx := context.Background()
	f.payments.reply = map[string]any{"status": "error", "message": "Insufficient stock for Desk Lamp"}
	f.payments.status = http.StatusBadRequest

	st, err := f.svc.Pay(ctx, sid, validCard())
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "Insufficient stock for Desk Lamp", st.Message)
	assert.Len(t, st.Items, 2)

	f.payments.mu.Lock()
	f.payments.reply, f.payments.status = nil, 0
	f.payments.mu.Unlock()
	st, err = f.svc.Pay(ctx, sid, PaymentInput{Method: MethodUPI, UPI: "asha@okbank"})
	require.NoError(t, err)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Nil(t, f.payments.last()["couponCode"])
}

func TestSecondPayWhileInFlightIsRefused(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	f.ready(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.payments.hold = release

	first := make(chan Status, 1)
	go func() {
		st, _ := f.svc.Pay(ctx, sid, validCard())
		first <- st
	}()
	require.Eventually(t, func() bool {
		st, err := f.svc.Status(ctx, sid)
		return err == nil && st.Phase == PhaseSubmitting
	}, 2*time.Second, 10*time.Millisecond)

	st, err := f.svc.Status(ctx, sid)
	require.NoError(t, err)
	assert.Greater(t, st.RemainingSeconds, 0)
	assert.LessOrEqual(t, st.RemainingSeconds, 5)

	_, err = f.svc.Pay(ctx, sid, validCard())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Begin(ctx, sid)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	close(release)
	select {
	case st := <-first:
		assert.Equal(t, PhaseSuccess, st.Phase)
	case <-time.After(3 * time.Second):
		t.Fatal("first payment never returned")
	}
	assert.Equal(t, 1, orderPosts(f))
}

func orderPosts(f fixture) int {
	n := 0
	for _, c := range f.fake.Calls(servlet.EndpointPayment) {
		if c.Method == http.MethodPost && c.Action == "" {
			n++
		}
	}
	return n
}

func TestTimeoutThenLateSuccessIsReconciled(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	f.ready(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.payments.hold = release

	st, err := f.svc.Pay(ctx, sid, validCard())
	require.NoError(t, err)
	assert.Equal(t, PhaseTimedOut, st.Phase)
	assert.Equal(t, timedOutMessage, st.Message)
	assert.Len(t, st.Items, 2)

	close(release)
	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(waitCtx))

	order, ok, err := statestore.Load[types.PlacedOrder](ctx, f.store.Session(sid), statestore.KeyLastOrder)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, order.Late)
	assert.Equal(t, "9001", order.OrderID)

	st, err = f.svc.Status(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, NextOrders, st.Next)
}

func TestTimeoutThenLateFailureKeepsTimedOut(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	f.ready(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.payments.hold = release
	f.payments.reply = map[string]any{"status": "error", "message": "declined"}

	st, err := f.svc.Pay(ctx, sid, validCard())
	require.NoError(t, err)
	require.Equal(t, PhaseTimedOut, st.Phase)

	close(release)
	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(waitCtx))

	st, err = f.svc.Status(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, PhaseTimedOut, st.Phase)
	_, ok, err := statestore.Load[types.PlacedOrder](ctx, f.store.Session(sid), statestore.KeyLastOrder)
	require.NoError(t, err)
	assert.False(t, ok)
}

// strand leaves the checkout Submitting as if the owning process died mid-payment.
func (f fixture) strand(t *testing.T, marker *Attempt) {
	t.Helper()
	ctx := context.Background()
	sess := f.store.Session(sid)
	st, ok, err := statestore.Load[State](ctx, sess, statestore.KeyCheckout)
	require.NoError(t, err)
	require.True(t, ok)
	st.Phase = PhaseSubmitting
	st.AttemptID = "gone"
	require.NoError(t, statestore.Save(ctx, sess, statestore.KeyCheckout, st))
	if marker != nil {
		require.NoError(t, statestore.Save(ctx, sess, statestore.KeyPaymentInProgress, *marker))
	}
}

func TestStrandedAttemptIsSettledByEveryEntryPoint(t *testing.T) {
	expired := &Attempt{AttemptID: "gone", StartedAt: time.Now().Add(-2 * time.Minute), ExpiresAt: time.Now().Add(-30 * time.Second)}
	ctx := context.Background()

	tests := []struct {
		name   string
		marker *Attempt
		call   func(f fixture) (Status, error)
		want   Phase
	}{
		{name: "pay without marker", call: func(f fixture) (Status, error) {
			return f.svc.Pay(ctx, sid, PaymentInput{Method: MethodUPI, UPI: "asha@okbank"})
		}, want: PhaseSuccess},
		{name: "pay with expired marker", marker: expired, call: func(f fixture) (Status, error) {
			return f.svc.Pay(ctx, sid, validCard())
		}, want: PhaseSuccess},
		{name: "begin", call: func(f fixture) (Status, error) {
			return f.svc.Begin(ctx, sid)
		}, want: PhaseAddress},
		{name: "submit address", marker: expired, call: func(f fixture) (Status, error) {
			return f.svc.SubmitAddress(ctx, sid, validDelivery())
		}, want: PhaseCoupon},
		{name: "remove coupon", call: func(f fixture) (Status, error) {
			return f.svc.RemoveCoupon(ctx, sid)
		}, want: PhaseTimedOut},
		{name: "status", marker: expired, call: func(f fixture) (Status, error) {
			return f.svc.Status(ctx, sid)
		}, want: PhaseTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 5*time.Second)
			f.ready(t)
			f.strand(t, tt.marker)

			st, err := tt.call(f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Phase)

			_, held, err := statestore.Load[Attempt](ctx, f.store.Session(sid), statestore.KeyPaymentInProgress)
			require.NoError(t, err)
			assert.False(t, held)
		})
	}
}

func TestLiveAttemptIsNotSettled(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	f.ready(t)
	ctx := context.Background()
	live := &Attempt{AttemptID: "gone", StartedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute)}
	f.strand(t, live)

	_, err := f.svc.Pay(ctx, sid, validCard())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	st, err := f.svc.Status(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, PhaseSubmitting, st.Phase)
	assert.Greater(t, st.RemainingSeconds, 0)
}

func TestRemainingSecondsRoundsUp(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 90, remainingSeconds(now.Add(90*time.Second), now))
	assert.Equal(t, 90, remainingSeconds(now.Add(89200*time.Millisecond), now))
	assert.Equal(t, 1, remainingSeconds(now.Add(time.Millisecond), now))
	assert.Equal(t, 0, remainingSeconds(now, now))
	assert.Equal(t, 0, remainingSeconds(now.Add(-time.Second), now))
}
