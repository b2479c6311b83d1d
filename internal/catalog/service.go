package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/pricing"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// NextCart is where the UI goes after a buy-now.
const NextCart = "/cart"

type cartOps interface {
	AddToCart(ctx context.Context, sessionID, productID string, qty int) (cart.Result, error)
	StashBuyNow(ctx context.Context, sessionID, productID string, qty int) error
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Servlet *servlet.Client
	Store   *statestore.Store
	Cart    cartOps
	Images  images.Resolver
	Logger  *logger.Logger
}

// Service reads the product catalog through ProductServlet and CategoryServlet.
type Service interface {
	List(ctx context.Context, sessionID string, filter ListFilter) ([]ProductDTO, error)
	Get(ctx context.Context, sessionID, productID string) (*ProductDTO, error)
	Categories(ctx context.Context, sessionID string) ([]types.Category, error)
	BuyNow(ctx context.Context, sessionID, productID string, qty int) (BuyNowResult, error)
}

// BuyNowResult tells the UI whether the product reached the cart and where to go next.
type BuyNowResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Code    pkgerrors.Code `json:"code,omitempty"`
	Next    string         `json:"next,omitempty"`
	Cart    cart.Result    `json:"cart"`
}

type service struct {
	servlet *servlet.Client
	store   *statestore.Store
	cart    cartOps
	images  images.Resolver
	logg    *logger.Logger
}

// NewService builds a catalog service with the required dependencies.
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
	return &service{
		servlet: params.Servlet,
		store:   params.Store,
		cart:    params.Cart,
		images:  params.Images,
		logg:    logg,
	}, nil
}

// List issues one ProductServlet request for the filter. Rating order is applied here
// because the servlet only sorts by price.
func (s *service) List(ctx context.Context, sessionID string, filter ListFilter) ([]ProductDTO, error) {
	filter, err := filter.normalized()
	if err != nil {
		return nil, err
	}
	var products []types.Product
	if err := s.servlet.Get(ctx, sessionID, servlet.EndpointProduct, filter.query(), &products); err != nil {
		return nil, err
	}
	if filter.Sort == SortRatingDesc {
		sortByRating(products)
	}
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		if p.ProductID == "" {
			continue
		}
		out = append(out, NewProductDTO(p, s.images))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, sessionID, productID string) (*ProductDTO, error) {
	p, err := s.product(ctx, sessionID, productID)
	if err != nil {
		return nil, err
	}
	dto := NewProductDTO(p, s.images)
	return &dto, nil
}

func (s *service) Categories(ctx context.Context, sessionID string) ([]types.Category, error) {
	var categories []types.Category
	if err := s.servlet.Get(ctx, sessionID, servlet.EndpointCategory, nil, &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []types.Category{}
	}
	return categories, nil
}

// BuyNow adds the product to the cart and leaves an intent that pre-selects it on the cart page.
// Out-of-stock products are refused before any cart call.
func (s *service) BuyNow(ctx context.Context, sessionID, productID string, qty int) (BuyNowResult, error) {
	if _, err := session.RequireUser(ctx, s.store.Session(sessionID)); err != nil {
		return BuyNowResult{}, err
	}
	p, err := s.product(ctx, sessionID, productID)
	if err != nil {
		return BuyNowResult{}, err
	}
	if !CanPurchase(p) {
		return BuyNowResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock").
			WithDetails(map[string]any{"productId": p.ProductID})
	}
	qty = pricing.ClampQty(qty, p.Stock)

	added, err := s.cart.AddToCart(ctx, sessionID, p.ProductID, qty)
	if err != nil {
		return BuyNowResult{}, err
	}
	if !added.Success {
		return BuyNowResult{Message: added.Message, Code: added.Code, Cart: added}, nil
	}
	if err := s.cart.StashBuyNow(ctx, sessionID, p.ProductID, qty); err != nil {
		return BuyNowResult{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", p.ProductID), "catalog.buy_now")
	return BuyNowResult{Success: true, Next: NextCart, Cart: added}, nil
}

func (s *service) product(ctx context.Context, sessionID, productID string) (types.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	var p types.Product
	if err := s.servlet.Get(ctx, sessionID, servlet.EndpointProduct, url.Values{"productId": {productID}}, &p); err != nil {
		return types.Product{}, err
	}
	if p.ProductID == "" {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}
