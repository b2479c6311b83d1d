package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-gateway/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet/servlettest"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   Service
	carts cart.Service
	fake  *servlettest.Fake
	shop  *servlettest.Shop
	store *statestore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := servlettest.New(t)
	shop := servlettest.NewShop(fake)
	shop.AddProduct(servlettest.Product{ID: "1", Name: "Steel Bottle", Price: 499, Stock: 4, Discount: 10, Rating: 4.1, CategoryID: "2", Image: "12"})
	shop.AddProduct(servlettest.Product{ID: "2", Name: "Steel Lunchbox", Price: 299, Stock: 0, Rating: 4.8, CategoryID: "2"})
	shop.AddProduct(servlettest.Product{ID: "3", Name: "Yoga Mat", Price: 899, Stock: 9, Rating: 4.1, CategoryID: "5", Image: "https://cdn.example.com/mat.png"})

	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	client := fake.Client(t)
	carts, err := cart.NewService(cart.ServiceParams{Servlet: client, Store: store})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Servlet: client,
		Store:   store,
		Cart:    carts,
		Images:  images.NewResolver(fake.Server.URL, "/placeholder.png"),
	})
	require.NoError(t, err)
	return fixture{svc: svc, carts: carts, fake: fake, shop: shop, store: store}
}

func (f fixture) login(t *testing.T, sessionID string) {
	t.Helper()
	require.NoError(t, statestore.Save(context.Background(), f.store.Session(sessionID), statestore.KeyUser, types.User{UserID: "7", Email: "asha@shop.in"}))
}

func TestDerivedPricing(t *testing.T) {
	p := types.Product{Price: decimal.NewFromInt(100), DiscountPercent: decimal.NewFromInt(20), Stock: 1}
	assert.Equal(t, "80.00", DiscountedPrice(p).StringFixed(2))
	assert.True(t, HasDiscount(p))
	assert.True(t, CanPurchase(p))

	plain := types.Product{Price: decimal.RequireFromString("49.99")}
	assert.Equal(t, "49.99", DiscountedPrice(plain).StringFixed(2))
	assert.False(t, HasDiscount(plain))
	assert.True(t, OutOfStock(plain))
	assert.False(t, CanPurchase(plain))

	assert.True(t, DiscountedPrice(p).Equal(DiscountedPrice(p)))
}

func TestListMapsFiltersToServlet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.List(ctx, "", ListFilter{Category: "2", Query: "steel", Sort: SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ProductID)
	assert.Equal(t, "1", got[1].ProductID)

	calls := f.fake.Calls(servlet.EndpointProduct)
	require.Len(t, calls, 1)
	assert.Equal(t, "2", calls[0].Query.Get("category_id"))
	assert.Equal(t, "steel", calls[0].Query.Get("query"))
	assert.Equal(t, "low-high", calls[0].Query.Get("filter"))

	_, err = f.svc.List(ctx, "", ListFilter{Sort: SortPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, "high-low", f.fake.Calls(servlet.EndpointProduct)[1].Query.Get("filter"))
}

func TestListSortsByRatingStably(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.List(context.Background(), "", ListFilter{Sort: SortRatingDesc})
	require.NoError(t, err)
	ids := []string{got[0].ProductID, got[1].ProductID, got[2].ProductID}
	assert.Equal(t, []string{"2", "1", "3"}, ids)
	assert.Empty(t, f.fake.Calls(servlet.EndpointProduct)[0].Query.Get("filter"))
}

func TestListRejectsUnknownSort(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), "", ListFilter{Sort: "newest"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.fake.Calls(servlet.EndpointProduct))
}

func TestGetDerivesDisplayFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Get(ctx, "", "1")
	require.NoError(t, err)
	assert.Equal(t, "449.10", p.DiscountedPrice.StringFixed(2))
	assert.True(t, p.HasDiscount)
	assert.True(t, p.CanPurchase)
	assert.Equal(t, f.fake.Server.URL+"/ImageServlet?imgId=12", p.ImageURL)

	p, err = f.svc.Get(ctx, "", "3")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/mat.png", p.ImageURL)

	p, err = f.svc.Get(ctx, "", "2")
	require.NoError(t, err)
	assert.True(t, p.OutOfStock)
	assert.False(t, p.CanPurchase)

	_, err = f.svc.Get(ctx, "", "404")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestBuyNowRequiresLogin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BuyNow(context.Background(), "anon", "1", 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Empty(t, f.fake.Calls(servlet.EndpointCart))
}

func TestBuyNowRefusesOutOfStockBeforeCart(t *testing.T) {
	f := newFixture(t)
	f.login(t, "s1")

	_, err := f.svc.BuyNow(context.Background(), "s1", "2", 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.fake.Calls(servlet.EndpointCart))
}

func TestBuyNowAddsAndPreselects(t *testing.T) {
	f := newFixture(t)
	f.login(t, "s1")
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "s1", "3", 1)
	require.NoError(t, err)
	_, err = f.carts.SelectAll(ctx, "s1", true)
	require.NoError(t, err)

	res, err := f.svc.BuyNow(ctx, "s1", "1", 1)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, NextCart, res.Next)
	assert.Equal(t, 1, f.shop.CartQty("1"))

	page, err := f.carts.FetchCart(ctx, "s1")
	require.NoError(t, err)
	selected := cart.Selected(page.Items)
	require.Len(t, selected, 1)
	assert.Equal(t, "1", selected[0].ProductID)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	f.fake.Handle(servlet.EndpointCategory, func(w http.ResponseWriter, r *http.Request) {
		servlettest.JSON(w, http.StatusOK, []map[string]any{
			{"id": 2, "name": "Kitchen"},
			{"categoryId": "5", "categoryName": "Fitness"},
		})
	})

	got, err := f.svc.Categories(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.Category{CategoryID: "2", Name: "Kitchen"}, got[0])
	assert.Equal(t, "Fitness", got[1].Name)
}
