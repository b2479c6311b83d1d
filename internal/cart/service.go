package cart

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/pricing"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Servlet *servlet.Client
	Store   *statestore.Store
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service keeps a session's cart in step with CartServlet.
//
// Every mutation is followed by a full refetch. Business and transport failures are
// reported in the Result; only a refused session or invalid input is returned as an error.
type Service interface {
	FetchCart(ctx context.Context, sessionID string) (Result, error)
	Cart(ctx context.Context, sessionID string) (Result, error)
	AddToCart(ctx context.Context, sessionID, productID string, qty int) (Result, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (Result, error)
	Step(ctx context.Context, sessionID, productID string, delta int) (Result, error)
	RemoveFromCart(ctx context.Context, sessionID, productID string) (Result, error)
	ClearCart(ctx context.Context, sessionID string) (Result, error)
	SetSelected(ctx context.Context, sessionID, productID string, selected bool) (Result, error)
	SelectAll(ctx context.Context, sessionID string, selected bool) (Result, error)
	StashBuyNow(ctx context.Context, sessionID, productID string, qty int) error
	Reorder(ctx context.Context, sessionID, orderID string) (Result, error)
}

type service struct {
	servlet *servlet.Client
	store   *statestore.Store
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Servlet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servlet client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		servlet: params.Servlet,
		store:   params.Store,
		logg:    logg,
		now:     now,
	}, nil
}

func (s *service) FetchCart(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.sync(ctx, sess, nil), nil
}

// Cart returns the stored snapshot without a round trip.
func (s *service) Cart(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	state, err := s.load(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	return newResult(state.Items), nil
}

func (s *service) AddToCart(ctx context.Context, sessionID, productID string, qty int) (Result, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if qty < 1 {
		qty = 1
	}
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	form := url.Values{"productId": {productID}, "qty": {strconv.Itoa(qty)}}
	return s.mutate(ctx, sess, "add", form, false), nil
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (Result, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if qty < 1 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	form := url.Values{"productId": {productID}, "qty": {strconv.Itoa(qty)}}
	return s.mutate(ctx, sess, "update", form, false), nil
}

// Step moves a line's quantity by delta, clamped to [1, stock]. A step that lands on the current quantity makes no call.
func (s *service) Step(ctx context.Context, sessionID, productID string, delta int) (Result, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	state, err := s.load(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	line, ok := Find(state.Items, productID)
	if !ok {
		res := newResult(state.Items)
		res.Success = false
		res.Code = pkgerrors.CodeNotFound
		res.Message = "item is not in the cart"
		return res, nil
	}
	target := pricing.ClampQty(line.Qty+delta, line.Stock)
	if target == line.Qty {
		return newResult(state.Items), nil
	}
	form := url.Values{"productId": {line.ProductID}, "qty": {strconv.Itoa(target)}}
	return s.mutate(ctx, sess, "update", form, false), nil
}

func (s *service) RemoveFromCart(ctx context.Context, sessionID, productID string) (Result, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, sess, "remove", url.Values{"productId": {productID}}, true), nil
}

func (s *service) ClearCart(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, sess, "clear", url.Values{}, true), nil
}

func (s *service) SetSelected(ctx context.Context, sessionID, productID string, selected bool) (Result, error) {
	return s.reselect(ctx, sessionID, func(it *types.CartItem) {
		if it.ProductID == productID {
			it.Selected = selected
		}
	})
}

func (s *service) SelectAll(ctx context.Context, sessionID string, selected bool) (Result, error) {
	return s.reselect(ctx, sessionID, func(it *types.CartItem) {
		it.Selected = selected
	})
}

// StashBuyNow records the intent consumed by the next cart fetch.
func (s *service) StashBuyNow(ctx context.Context, sessionID, productID string, qty int) error {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return err
	}
	if qty < 1 {
		qty = 1
	}
	intent := BuyNowIntent{ProductID: productID, Qty: qty, CreatedAt: s.now().UTC()}
	if err := statestore.Save(ctx, sess, statestore.KeyBuyNow, intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save buy-now intent")
	}
	return nil
}

// Reorder copies a past order's lines into the cart and resyncs.
func (s *service) Reorder(ctx context.Context, sessionID, orderID string) (Result, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	var resp types.StatusResponse
	if err := s.servlet.PostForm(ctx, sess.ID(), servlet.EndpointReorder, "", url.Values{"orderId": {orderID}}, &resp); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "order_id", orderID), "cart.reorder_failed")
		return failure(err, s.cached(ctx, sess)), nil
	}
	if !resp.OK() {
		return rejectedResult(resp.Message, "could not reorder", s.cached(ctx, sess)), nil
	}
	return s.sync(ctx, sess, nil), nil
}

// mutate posts one CartServlet action and resyncs. add and update resync only when accepted;
// remove and clear always resync because the server may have changed either way.
func (s *service) mutate(ctx context.Context, sess *statestore.Session, action string, form url.Values, alwaysSync bool) Result {
	logCtx := s.logg.WithFields(ctx, map[string]any{"action": action, "product_id": form.Get("productId")})

	var resp types.CartMutationResponse
	err := s.servlet.PostForm(ctx, sess.ID(), servlet.EndpointCart, action, form, &resp)
	switch {
	case err != nil:
		s.logg.Warn(logCtx, "cart.mutation_failed")
		if !alwaysSync {
			return failure(err, s.cached(ctx, sess))
		}
		return failure(err, s.sync(ctx, sess, nil).Items)
	case !resp.OK():
		s.logg.Info(logCtx, "cart.mutation_rejected")
		if !alwaysSync {
			return rejectedResult(resp.Message, "cart update failed", s.cached(ctx, sess))
		}
		return rejectedResult(resp.Message, "cart update failed", s.sync(ctx, sess, nil).Items)
	}
	res := s.sync(ctx, sess, resp.UpdatedStocks)
	if res.Success && resp.Message != "" {
		res.Message = resp.Message
	}
	return res
}

// sync refetches the cart and replaces the snapshot. On failure the stored snapshot is served as a fallback.
func (s *service) sync(ctx context.Context, sess *statestore.Session, remaining map[string]int) Result {
	var fresh []types.CartItem
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointCart, nil, &fresh); err != nil {
		s.logg.Warn(ctx, "cart.fetch_failed")
		return failure(err, s.cached(ctx, sess))
	}

	prev, err := s.load(ctx, sess)
	if err != nil {
		return failure(err, nil)
	}
	items := reconcile(prev.Items, fresh, remaining)

	intent, ok, err := statestore.Load[BuyNowIntent](ctx, sess, statestore.KeyBuyNow)
	if err != nil {
		s.logg.Error(ctx, "cart.buy_now_load_failed", err)
	}
	if ok {
		applyIntent(items, intent)
		if err := sess.Clear(ctx, statestore.KeyBuyNow); err != nil {
			s.logg.Error(ctx, "cart.buy_now_clear_failed", err)
		}
	}

	if err := s.save(ctx, sess, items); err != nil {
		return failure(err, items)
	}
	return newResult(items)
}

func (s *service) reselect(ctx context.Context, sessionID string, fn func(*types.CartItem)) (Result, error) {
	sess, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	state, err := s.load(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	for i := range state.Items {
		fn(&state.Items[i])
	}
	if err := s.save(ctx, sess, state.Items); err != nil {
		return Result{}, err
	}
	return newResult(state.Items), nil
}

func (s *service) open(ctx context.Context, sessionID string) (*statestore.Session, error) {
	sess := s.store.Session(sessionID)
	if _, err := session.RequireUser(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) load(ctx context.Context, sess *statestore.Session) (State, error) {
	state, _, err := statestore.Load[State](ctx, sess, statestore.KeyCart)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return state, nil
}

func (s *service) cached(ctx context.Context, sess *statestore.Session) []types.CartItem {
	state, err := s.load(ctx, sess)
	if err != nil {
		s.logg.Error(ctx, "cart.snapshot_load_failed", err)
		return nil
	}
	return state.Items
}

func (s *service) save(ctx context.Context, sess *statestore.Session, items []types.CartItem) error {
	state := State{Items: items, SyncedAt: s.now().UTC()}
	if err := statestore.Save(ctx, sess, statestore.KeyCart, state); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart")
	}
	return nil
}

func rejectedResult(message, fallback string, items []types.CartItem) Result {
	res := newResult(items)
	res.Success = false
	res.Code = pkgerrors.CodeConflict
	res.Message = strings.TrimSpace(message)
	if res.Message == "" {
		res.Message = fallback
	}
	return res
}
