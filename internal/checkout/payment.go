package checkout

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
	"github.com/google/uuid"
)

const (
	MethodCard = "card"
	MethodUPI  = "upi"

	timedOutMessage = "payment timed out, please try again"
	failedMessage   = "payment failed"
)

// CardDetails are checked locally and never forwarded to the servlet.
type CardDetails struct {
	CardHolder string `json:"cardHolder" validate:"required,cardholder"`
	CardNumber string `json:"cardNumber" validate:"required,luhn"`
	ExpMonth   int    `json:"expMonth" validate:"gte=1,lte=12"`
	ExpYear    int    `json:"expYear" validate:"required"`
	CVV        string `json:"cvv" validate:"required,cvv"`
}

// PaymentInput is what the shopper submits on the payment step.
type PaymentInput struct {
	Method string       `json:"method"`
	Card   *CardDetails `json:"card,omitempty"`
	UPI    string       `json:"upiId,omitempty"`
}

func (in PaymentInput) check(now time.Time) error {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if err := validate.Var(in.Method, "oneof=card upi"); err != nil {
		return fieldError("method", "must be card or upi")
	}
	// only the chosen method's details are checked; a stale card form next to a UPI id is ignored
	switch in.Method {
	case MethodCard:
		if in.Card == nil {
			return fieldError("card", "is required")
		}
		if err := validate.Struct(in.Card); err != nil {
			return validation.AsError(err)
		}
		if !validation.ValidExpiry(in.Card.ExpMonth, in.Card.ExpYear, now) {
			return fieldError("expYear", "card is expired or the expiry is out of range")
		}
	case MethodUPI:
		if !validation.ValidUPI(in.UPI) {
			return fieldError("upiId", "must be a valid UPI id")
		}
	}
	return nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: message})
}

type paymentRequest struct {
	Amount         json.Number `json:"amount"`
	OriginalAmount json.Number `json:"originalAmount"`
	SelectedItems  []int       `json:"selectedItems"`
	Method         string      `json:"method"`
	CouponCode     *string     `json:"couponCode"`
}

func newPaymentRequest(st State, method string) (paymentRequest, error) {
	ids := make([]int, 0, len(st.Items))
	for _, line := range st.Items {
		id, err := strconv.Atoi(line.ProductID)
		if err != nil {
			return paymentRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "cart holds an item the payment service cannot accept").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		ids = append(ids, id)
	}
	req := paymentRequest{
		Amount:         json.Number(st.Payable().StringFixed(2)),
		OriginalAmount: json.Number(st.Amount.StringFixed(2)),
		SelectedItems:  ids,
		Method:         method,
	}
	if st.Coupon != nil {
		code := st.Coupon.Code
		req.CouponCode = &code
	}
	return req, nil
}

// Pay claims the session's payment slot and submits the order. It returns once the servlet
// answers or the countdown runs out, whichever comes first. An answer that arrives after the
// countdown is still recorded.
func (s *service) Pay(ctx context.Context, sessionID string, in PaymentInput) (Status, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	now := s.now()
	if err := in.check(now); err != nil {
		return Status{}, err
	}
	method := strings.ToLower(strings.TrimSpace(in.Method))

	unlock := s.locks.lock(sess.ID())
	st, _, err := s.current(ctx, sess)
	if err != nil {
		unlock()
		return Status{}, err
	}
	if st.Phase == PhaseSubmitting {
		unlock()
		return Status{}, s.inFlight(ctx, sess)
	}
	if !st.Phase.canPay() {
		unlock()
		return Status{}, phaseError(st.Phase, "enter a delivery address before paying")
	}
	if len(st.Items) == 0 {
		unlock()
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "no items selected for checkout")
	}
	payload, err := newPaymentRequest(st, method)
	if err != nil {
		unlock()
		return Status{}, err
	}

	attempt := Attempt{
		AttemptID: uuid.NewString(),
		StartedAt: now.UTC(),
		ExpiresAt: now.Add(s.timeout).UTC(),
	}
	won, err := statestore.Claim(ctx, sess, statestore.KeyPaymentInProgress, attempt, s.timeout)
	if err != nil {
		unlock()
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim payment slot")
	}
	if !won {
		unlock()
		return Status{}, s.inFlight(ctx, sess)
	}
	st.Phase = PhaseSubmitting
	st.AttemptID = attempt.AttemptID
	st.Message = ""
	st.OrderID = ""
	if err := s.save(ctx, sess, st); err != nil {
		_ = sess.Clear(ctx, statestore.KeyPaymentInProgress)
		unlock()
		return Status{}, err
	}
	unlock()

	logCtx := s.logg.WithField(ctx, "attempt_id", attempt.AttemptID)
	s.logg.Info(logCtx, "checkout.payment_started")

	detached := context.WithoutCancel(logCtx)
	done := make(chan struct{})
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)
		var resp types.PaymentResult
		callErr := s.servlet.PostJSON(detached, sess.ID(), servlet.EndpointPayment, nil, payload, &resp)
		s.finalize(detached, sess, st, attempt, method, resp, callErr)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.expire(detached, sess, attempt)
	case <-ctx.Done():
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeTimeout, ctx.Err(), "request ended while payment was in progress")
	}
	return s.Status(ctx, sessionID)
}

// finalize records the servlet's answer. A success is always kept as the last order, even
// when it lands after the countdown; a late failure only gets logged.
func (s *service) finalize(ctx context.Context, sess *statestore.Session, snapshot State, attempt Attempt, method string, resp types.PaymentResult, callErr error) {
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	st, err := s.load(ctx, sess)
	if err != nil {
		s.logg.Error(ctx, "checkout.finalize_load_failed", err)
		return
	}
	ours := st.AttemptID == attempt.AttemptID
	late := !ours || st.Phase != PhaseSubmitting

	if callErr == nil && resp.OK() {
		order := types.PlacedOrder{
			OrderID:  resp.OrderID,
			Amount:   snapshot.Payable(),
			Method:   method,
			PlacedAt: s.now().UTC(),
			Late:     late,
		}
		if snapshot.Coupon != nil {
			order.Coupon = snapshot.Coupon.Code
		}
		if err := statestore.Save(ctx, sess, statestore.KeyLastOrder, order); err != nil {
			s.logg.Error(ctx, "checkout.last_order_save_failed", err)
		}
		if ours {
			st.Phase = PhaseSuccess
			st.OrderID = resp.OrderID
			st.Message = resp.Message
			st.Items = nil
			st.Coupon = nil
			if err := s.save(ctx, sess, st); err != nil {
				s.logg.Error(ctx, "checkout.success_save_failed", err)
			}
		}
		s.clearAttempt(ctx, sess, attempt.AttemptID)
		if _, err := s.cart.FetchCart(ctx, sess.ID()); err != nil {
			s.logg.Warn(ctx, "checkout.cart_resync_failed")
		}
		if late {
			s.metrics.IncPayment("late_success")
			s.logg.Warn(s.logg.WithField(ctx, "order_id", resp.OrderID), "checkout.payment_confirmed_late")
			return
		}
		s.metrics.IncPayment(string(PhaseSuccess))
		s.logg.Info(s.logg.WithField(ctx, "order_id", resp.OrderID), "checkout.payment_succeeded")
		return
	}

	message := failureMessage(resp, callErr)
	if late {
		s.logg.Warn(s.logg.WithField(ctx, "reason", message), "checkout.late_payment_failure_ignored")
		return
	}
	st.Phase = PhaseFailed
	st.Message = message
	if err := s.save(ctx, sess, st); err != nil {
		s.logg.Error(ctx, "checkout.failure_save_failed", err)
	}
	s.clearAttempt(ctx, sess, attempt.AttemptID)
	s.metrics.IncPayment(string(PhaseFailed))
	s.logg.Warn(s.logg.WithField(ctx, "reason", message), "checkout.payment_failed")
}

func (s *service) expire(ctx context.Context, sess *statestore.Session, attempt Attempt) {
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	st, err := s.load(ctx, sess)
	if err != nil {
		s.logg.Error(ctx, "checkout.expire_load_failed", err)
		return
	}
	if st.Phase != PhaseSubmitting || st.AttemptID != attempt.AttemptID {
		return
	}
	st.Phase = PhaseTimedOut
	st.Message = timedOutMessage
	if err := s.save(ctx, sess, st); err != nil {
		s.logg.Error(ctx, "checkout.expire_save_failed", err)
	}
	s.clearAttempt(ctx, sess, attempt.AttemptID)
	s.metrics.IncPayment(string(PhaseTimedOut))
	s.logg.Warn(ctx, "checkout.payment_timed_out")
}

// clearAttempt drops the in-flight marker only if it still belongs to attemptID.
func (s *service) clearAttempt(ctx context.Context, sess *statestore.Session, attemptID string) {
	current, ok, err := statestore.Load[Attempt](ctx, sess, statestore.KeyPaymentInProgress)
	if err != nil || !ok || current.AttemptID != attemptID {
		return
	}
	if err := sess.Clear(ctx, statestore.KeyPaymentInProgress); err != nil {
		s.logg.Error(ctx, "checkout.attempt_clear_failed", err)
	}
}

func failureMessage(resp types.PaymentResult, callErr error) string {
	if callErr != nil {
		if typed := pkgerrors.As(callErr); typed != nil && typed.Message() != "" {
			return typed.Message()
		}
		return pkgerrors.DependencyMessage
	}
	if msg := strings.TrimSpace(resp.Message); msg != "" {
		return msg
	}
	return failedMessage
}
