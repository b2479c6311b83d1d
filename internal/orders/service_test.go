package orders

import (
	"context"
	"net/http"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet/servlettest"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCanonicalizesOrders(t *testing.T) {
	fake := servlettest.New(t)
	fake.Handle(servlet.EndpointOrderHistory, func(w http.ResponseWriter, r *http.Request) {
		servlettest.JSON(w, http.StatusOK, []map[string]any{{
			"id":           41,
			"order_date":   "2026-03-02 10:15:00",
			"status":       "PLACED",
			"total_amount": 650.5,
			"orderItems": []map[string]any{
				{"product_name": "Desk Lamp", "qty": 2, "price": 200},
				{"productName": "Mug", "quantity": 1, "price": "250.50"},
			},
		}})
	})
	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	sess := store.Session("s1")
	require.NoError(t, statestore.Save(ctx, sess, statestore.KeyUser, types.User{UserID: "7", Email: "asha@shop.in"}))
	require.NoError(t, statestore.Save(ctx, sess, statestore.KeyLastOrder, types.PlacedOrder{OrderID: "41", Amount: decimal.RequireFromString("650.50")}))

	svc, err := NewService(ServiceParams{Servlet: fake.Client(t), Store: store})
	require.NoError(t, err)

	got, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Orders, 1)
	order := got.Orders[0]
	assert.Equal(t, "41", order.OrderID)
	assert.Equal(t, "650.50", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Desk Lamp", order.Items[0].ProductName)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "250.50", order.Items[1].Price.StringFixed(2))
	require.NotNil(t, got.LastOrder)
	assert.Equal(t, "41", got.LastOrder.OrderID)
}

func TestHistoryRefusesAnonymous(t *testing.T) {
	fake := servlettest.New(t)
	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Servlet: fake.Client(t), Store: store})
	require.NoError(t, err)

	_, err = svc.History(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Empty(t, fake.Calls(""))
}

func TestHistorySurfacesServletRejection(t *testing.T) {
	fake := servlettest.New(t)
	fake.Handle(servlet.EndpointOrderHistory, func(w http.ResponseWriter, r *http.Request) {
		servlettest.JSON(w, http.StatusUnauthorized, map[string]any{"error": "Not logged in."})
	})
	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, statestore.Save(context.Background(), store.Session("s1"), statestore.KeyUser, types.User{Email: "asha@shop.in"}))
	svc, err := NewService(ServiceParams{Servlet: fake.Client(t), Store: store})
	require.NoError(t, err)

	_, err = svc.History(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, "Not logged in.", pkgerrors.As(err).Message())
}
