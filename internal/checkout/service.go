package checkout

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/metrics"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
)

// DefaultPaymentTimeout is how long a payment may stay in flight before the shopper sees a timeout.
const DefaultPaymentTimeout = 90 * time.Second

var validate = validation.New()

type cartOps interface {
	Cart(ctx context.Context, sessionID string) (cart.Result, error)
	FetchCart(ctx context.Context, sessionID string) (cart.Result, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Servlet        *servlet.Client
	Store          *statestore.Store
	Cart           cartOps
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
	Now            func() time.Time
	PaymentTimeout time.Duration
}

// Service walks a session through address, coupon and payment.
type Service interface {
	Begin(ctx context.Context, sessionID string) (Status, error)
	SubmitAddress(ctx context.Context, sessionID string, delivery Delivery) (Status, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (Status, error)
	RemoveCoupon(ctx context.Context, sessionID string) (Status, error)
	ListCoupons(ctx context.Context, sessionID string) ([]types.Coupon, error)
	Pay(ctx context.Context, sessionID string, in PaymentInput) (Status, error)
	Status(ctx context.Context, sessionID string) (Status, error)
	// Wait blocks until payments still in flight have settled or ctx ends.
	Wait(ctx context.Context) error
}

type service struct {
	servlet *servlet.Client
	store   *statestore.Store
	cart    cartOps
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
	timeout time.Duration

	locks    sessionLocks
	inflight sync.WaitGroup
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Servlet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servlet client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	timeout := params.PaymentTimeout
	if timeout <= 0 {
		timeout = DefaultPaymentTimeout
	}
	return &service{
		servlet: params.Servlet,
		store:   params.Store,
		cart:    params.Cart,
		metrics: params.Metrics,
		logg:    logg,
		now:     now,
		timeout: timeout,
		locks:   sessionLocks{entries: map[string]*lockEntry{}},
	}, nil
}

// Begin snapshots the selected cart lines. At least one line must be selected.
func (s *service) Begin(ctx context.Context, sessionID string) (Status, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	existing, _, err := s.current(ctx, sess)
	if err != nil {
		return Status{}, err
	}
	if existing.Phase == PhaseSubmitting {
		return Status{}, s.inFlight(ctx, sess)
	}

	snapshot, err := s.cart.Cart(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	selected := cart.Selected(snapshot.Items)
	if len(selected) == 0 {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "select at least one item to checkout")
	}
	lines, amount := linesFrom(selected)
	st := State{
		Phase:    PhaseAddress,
		Items:    lines,
		Amount:   amount,
		Delivery: existing.Delivery,
	}
	if err := s.save(ctx, sess, st); err != nil {
		return Status{}, err
	}
	return statusOf(st), nil
}

func (s *service) SubmitAddress(ctx context.Context, sessionID string, delivery Delivery) (Status, error) {
	delivery = delivery.normalized()
	if err := validate.Struct(delivery); err != nil {
		return Status{}, validation.AsError(err)
	}
	return s.update(ctx, sessionID, func(st *State) error {
		switch st.Phase {
		case PhaseAddress, PhaseCoupon, PhaseFailed, PhaseTimedOut:
		default:
			return phaseError(st.Phase, "start checkout before entering an address")
		}
		st.Delivery = &delivery
		st.Phase = PhaseCoupon
		st.Message = ""
		return nil
	})
}

// ApplyCoupon validates code against the original amount and replaces any coupon already applied.
func (s *service) ApplyCoupon(ctx context.Context, sessionID, code string) (Status, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "enter a coupon code")
	}
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	st, _, err := s.current(ctx, sess)
	if err != nil {
		return Status{}, err
	}
	if !st.Phase.canPay() {
		return Status{}, phaseError(st.Phase, "enter a delivery address before applying a coupon")
	}

	payload := map[string]any{
		"code":   code,
		"amount": json.Number(st.Amount.StringFixed(2)),
	}
	var resp types.CouponValidation
	query := url.Values{"action": {"validateCoupon"}}
	if err := s.servlet.PostJSON(ctx, sess.ID(), servlet.EndpointPayment, query, payload, &resp); err != nil {
		return Status{}, err
	}
	if !resp.Valid {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "coupon is not applicable"
		}
		return Status{}, pkgerrors.New(pkgerrors.CodeConflict, msg).WithDetails(map[string]any{"code": code})
	}

	st.Coupon = &AppliedCoupon{
		Code:           code,
		DiscountAmount: resp.DiscountAmount.Round(2),
		NewAmount:      resp.NewAmount.Round(2),
	}
	if err := s.save(ctx, sess, st); err != nil {
		return Status{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "coupon", code), "checkout.coupon_applied")
	return statusOf(st), nil
}

func (s *service) RemoveCoupon(ctx context.Context, sessionID string) (Status, error) {
	return s.update(ctx, sessionID, func(st *State) error {
		if st.Phase == PhaseSubmitting {
			return phaseError(st.Phase, "a payment is in progress")
		}
		st.Coupon = nil
		return nil
	})
}

func (s *service) ListCoupons(ctx context.Context, sessionID string) ([]types.Coupon, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var resp types.CouponList
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointPayment, url.Values{"action": {"listCoupons"}}, &resp); err != nil {
		return nil, err
	}
	if resp.Coupons == nil {
		resp.Coupons = []types.Coupon{}
	}
	return resp.Coupons, nil
}

// Status reports the checkout, including the seconds left on an in-flight payment so a
// reload resumes the same countdown.
func (s *service) Status(ctx context.Context, sessionID string) (Status, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	st, attempt, err := s.current(ctx, sess)
	if err != nil {
		return Status{}, err
	}
	out := statusOf(st)
	if st.Phase == PhaseSubmitting {
		out.RemainingSeconds = remainingSeconds(attempt.ExpiresAt, s.now())
	}
	return out, nil
}

// current loads the checkout and settles a Submitting phase whose attempt marker is gone or
// past its deadline, which happens when the process that owned the attempt died. The attempt
// is returned only while it is still live.
func (s *service) current(ctx context.Context, sess *statestore.Session) (State, Attempt, error) {
	st, err := s.load(ctx, sess)
	if err != nil {
		return State{}, Attempt{}, err
	}
	if st.Phase != PhaseSubmitting {
		return st, Attempt{}, nil
	}
	attempt, ok, err := statestore.Load[Attempt](ctx, sess, statestore.KeyPaymentInProgress)
	if err != nil {
		return State{}, Attempt{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment attempt")
	}
	if ok && attempt.AttemptID == st.AttemptID && s.now().Before(attempt.ExpiresAt) {
		return st, attempt, nil
	}
	st.Phase = PhaseTimedOut
	st.Message = timedOutMessage
	if err := s.save(ctx, sess, st); err != nil {
		return State{}, Attempt{}, err
	}
	if ok && attempt.AttemptID == st.AttemptID {
		s.clearAttempt(ctx, sess, attempt.AttemptID)
	}
	s.metrics.IncPayment(string(PhaseTimedOut))
	s.logg.Warn(s.logg.WithField(ctx, "attempt_id", st.AttemptID), "checkout.stale_attempt_settled")
	return st, Attempt{}, nil
}

func (s *service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) update(ctx context.Context, sessionID string, fn func(*State) error) (Status, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	unlock := s.locks.lock(sess.ID())
	defer unlock()

	st, _, err := s.current(ctx, sess)
	if err != nil {
		return Status{}, err
	}
	if err := fn(&st); err != nil {
		return Status{}, err
	}
	if err := s.save(ctx, sess, st); err != nil {
		return Status{}, err
	}
	return statusOf(st), nil
}

func (s *service) inFlight(ctx context.Context, sess *statestore.Session) error {
	details := map[string]any{}
	if attempt, ok, err := statestore.Load[Attempt](ctx, sess, statestore.KeyPaymentInProgress); err == nil && ok {
		details["remainingSeconds"] = remainingSeconds(attempt.ExpiresAt, s.now())
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "a payment is already in progress").WithDetails(details)
}

func (s *service) open(ctx context.Context, sessionID string) (*statestore.Session, error) {
	sess := s.store.Session(sessionID)
	if _, err := session.RequireUser(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) load(ctx context.Context, sess *statestore.Session) (State, error) {
	st, ok, err := statestore.Load[State](ctx, sess, statestore.KeyCheckout)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout")
	}
	if !ok || st.Phase == "" {
		st.Phase = PhaseIdle
	}
	return st, nil
}

func (s *service) save(ctx context.Context, sess *statestore.Session, st State) error {
	st.UpdatedAt = s.now().UTC()
	if err := statestore.Save(ctx, sess, statestore.KeyCheckout, st); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save checkout")
	}
	return nil
}

func phaseError(phase Phase, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).WithDetails(map[string]any{"phase": phase})
}

// sessionLocks serializes checkout state writes per session within this process.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
