package wishlist

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// Policies for a move whose wishlist removal fails after the cart add succeeded.
const (
	PolicyKeepBoth   = "keep_both"
	PolicyCompensate = "compensate"
)

const defaultPendingTTL = 15 * time.Second

type cartOps interface {
	FetchCart(ctx context.Context, sessionID string) (cart.Result, error)
	AddToCart(ctx context.Context, sessionID, productID string, qty int) (cart.Result, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (cart.Result, error)
	RemoveFromCart(ctx context.Context, sessionID, productID string) (cart.Result, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	Servlet    *servlet.Client
	Store      *statestore.Store
	Cart       cartOps
	Logger     *logger.Logger
	Now        func() time.Time
	MovePolicy string
	PendingTTL time.Duration
}

// Service keeps a session's wishlist in step with WishlistServlet.
type Service interface {
	GetWishlist(ctx context.Context, sessionID string) (Result, error)
	AddToWishlist(ctx context.Context, sessionID, productID string) (Result, error)
	RemoveFromWishlist(ctx context.Context, sessionID, productID string) (Result, error)
	ClearWishlist(ctx context.Context, sessionID string) (Result, error)
	GetWishlistCount(ctx context.Context, sessionID string) (int, error)
	Contains(ctx context.Context, sessionID, productID string) (bool, error)
	MoveToCart(ctx context.Context, sessionID, productID string) (MoveResult, error)
	Toggle(ctx context.Context, sessionID, productID string) (ToggleResult, error)
}

// State is the wishlist snapshot kept per storefront session.
type State struct {
	Items    []types.WishlistItem `json:"items"`
	Toggles  map[string]Toggle    `json:"toggles,omitempty"`
	SyncedAt time.Time            `json:"syncedAt"`
}

// Result is what list operations report back to the caller.
type Result struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Code    pkgerrors.Code       `json:"code,omitempty"`
	Items   []types.WishlistItem `json:"items"`
	Count   int                  `json:"count"`
}

type service struct {
	servlet    *servlet.Client
	store      *statestore.Store
	cart       cartOps
	logg       *logger.Logger
	now        func() time.Time
	movePolicy string
	pendingTTL time.Duration
}

// NewService builds a wishlist service with the required dependencies.
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
	policy := params.MovePolicy
	switch policy {
	case "":
		policy = PolicyKeepBoth
	case PolicyKeepBoth, PolicyCompensate:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown move policy "+policy)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &service{
		servlet:    params.Servlet,
		store:      params.Store,
		cart:       params.Cart,
		logg:       logg,
		now:        now,
		movePolicy: policy,
		pendingTTL: ttl,
	}, nil
}

func (s *service) GetWishlist(ctx context.Context, sessionID string) (Result, error) {
	sess, user, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.sync(ctx, sess, user), nil
}

func (s *service) AddToWishlist(ctx context.Context, sessionID, productID string) (Result, error) {
	return s.mutate(ctx, sessionID, "add", productID)
}

func (s *service) RemoveFromWishlist(ctx context.Context, sessionID, productID string) (Result, error) {
	return s.mutate(ctx, sessionID, "remove", productID)
}

func (s *service) ClearWishlist(ctx context.Context, sessionID string) (Result, error) {
	return s.mutate(ctx, sessionID, "clearAll", "")
}

func (s *service) GetWishlistCount(ctx context.Context, sessionID string) (int, error) {
	sess, user, err := s.open(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	var out types.WishlistCount
	q := url.Values{"count": {"1"}, "userId": {user.UserID}}
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointWishlist, q, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *service) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	sess, user, err := s.open(ctx, sessionID)
	if err != nil {
		return false, err
	}
	var out types.WishlistCheck
	q := url.Values{"check": {productID}, "userId": {user.UserID}}
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointWishlist, q, &out); err != nil {
		return false, err
	}
	return out.InWishlist, nil
}

func (s *service) mutate(ctx context.Context, sessionID, action, productID string) (Result, error) {
	productID = strings.TrimSpace(productID)
	if action != "clearAll" && productID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	sess, user, err := s.open(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	resp, err := s.post(ctx, sess, user, action, productID)
	if err != nil {
		return failure(err, s.cached(ctx, sess)), nil
	}
	if !resp.OK() {
		return rejectedResult(resp.Message, "wishlist update failed", s.cached(ctx, sess)), nil
	}
	res := s.sync(ctx, sess, user)
	if res.Success && resp.Message != "" {
		res.Message = resp.Message
	}
	return res, nil
}

func (s *service) post(ctx context.Context, sess *statestore.Session, user *types.User, action, productID string) (types.WishlistMutationResponse, error) {
	form := url.Values{"userId": {user.UserID}}
	if productID != "" {
		form.Set("productId", productID)
	}
	var resp types.WishlistMutationResponse
	if err := s.servlet.PostForm(ctx, sess.ID(), servlet.EndpointWishlist, action, form, &resp); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"action": action, "product_id": productID}), "wishlist.mutation_failed")
		return resp, err
	}
	return resp, nil
}

// sync refetches the wishlist and replaces the stored items. Toggle outcomes are kept.
func (s *service) sync(ctx context.Context, sess *statestore.Session, user *types.User) Result {
	var items []types.WishlistItem
	q := url.Values{"userId": {user.UserID}}
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointWishlist, q, &items); err != nil {
		s.logg.Warn(ctx, "wishlist.fetch_failed")
		return failure(err, s.cached(ctx, sess))
	}
	state, err := s.load(ctx, sess)
	if err != nil {
		return failure(err, items)
	}
	state.Items = items
	state.SyncedAt = s.now().UTC()
	if err := s.save(ctx, sess, state); err != nil {
		return failure(err, items)
	}
	return newResult(items)
}

func (s *service) open(ctx context.Context, sessionID string) (*statestore.Session, *types.User, error) {
	sess := s.store.Session(sessionID)
	user, err := session.RequireUser(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	return sess, user, nil
}

func (s *service) load(ctx context.Context, sess *statestore.Session) (State, error) {
	state, _, err := statestore.Load[State](ctx, sess, statestore.KeyWishlist)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist")
	}
	if state.Toggles == nil {
		state.Toggles = map[string]Toggle{}
	}
	return state, nil
}

func (s *service) save(ctx context.Context, sess *statestore.Session, state State) error {
	if err := statestore.Save(ctx, sess, statestore.KeyWishlist, state); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save wishlist")
	}
	return nil
}

func (s *service) cached(ctx context.Context, sess *statestore.Session) []types.WishlistItem {
	state, err := s.load(ctx, sess)
	if err != nil {
		s.logg.Error(ctx, "wishlist.snapshot_load_failed", err)
		return nil
	}
	return state.Items
}

func newResult(items []types.WishlistItem) Result {
	if items == nil {
		items = []types.WishlistItem{}
	}
	return Result{Success: true, Items: items, Count: len(items)}
}

func failure(err error, items []types.WishlistItem) Result {
	res := newResult(items)
	res.Success = false
	res.Code = pkgerrors.CodeDependency
	res.Message = pkgerrors.DependencyMessage
	if typed := pkgerrors.As(err); typed != nil {
		res.Code = typed.Code()
		res.Message = typed.Message()
	}
	return res
}

func rejectedResult(message, fallback string, items []types.WishlistItem) Result {
	res := newResult(items)
	res.Success = false
	res.Code = pkgerrors.CodeConflict
	res.Message = strings.TrimSpace(message)
	if res.Message == "" {
		res.Message = fallback
	}
	return res
}

func contains(items []types.WishlistItem, productID string) bool {
	for _, it := range items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}
