package admin

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/pagination"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet/servlettest"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

// backoffice is a scripted AdminServlet holding products and users.
type backoffice struct {
	mu          sync.Mutex
	products    []map[string]any
	users       []map[string]any
	nextID      int
	uploadType  string
	uploadBytes int
}

func (b *backoffice) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	action := servlettest.Param(r, "action")
	switch action {
	case "listProducts":
		servlettest.JSON(w, http.StatusOK, b.products)
	case "listUsers":
		servlettest.JSON(w, http.StatusOK, b.users)
	case "addProduct":
		if file, header, err := r.FormFile("image"); err == nil {
			b.uploadType = header.Header.Get("Content-Type")
			b.uploadBytes = int(header.Size)
			_ = file.Close()
		}
		price, _ := strconv.ParseFloat(servlettest.Param(r, "price"), 64)
		b.nextID++
		b.products = append(b.products, map[string]any{
			"productId":   b.nextID,
			"productName": servlettest.Param(r, "productName"),
			"price":       price,
			"stock":       servlettest.Param(r, "stock"),
			"image":       []int{1, 2, 3},
		})
		servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case "deleteProduct":
		id := servlettest.Param(r, "productId")
		for i, p := range b.products {
			if strconv.Itoa(p["productId"].(int)) == id {
				b.products = append(b.products[:i], b.products[i+1:]...)
				servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
				return
			}
		}
		servlettest.JSON(w, http.StatusOK, map[string]any{"status": "fail"})
	case "toggleStatus":
		id := servlettest.Param(r, "userId")
		active, _ := strconv.ParseBool(servlettest.Param(r, "active"))
		for _, u := range b.users {
			if u["id"] == id {
				u["active"] = active
			}
		}
		servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		servlettest.JSON(w, http.StatusBadRequest, map[string]any{"error": "Unknown POST action"})
	}
}

type fixture struct {
	svc   Service
	fake  *servlettest.Fake
	back  *backoffice
	store *statestore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := servlettest.New(t)
	back := &backoffice{
		products: []map[string]any{},
		users: []map[string]any{
			{"id": "3", "name": "Ravi Kumar", "email": "ravi@shop.in", "active": true},
		},
	}
	fake.Handle(servlet.EndpointAdmin, back.handle)
	fake.Handle(servlet.EndpointUnblock, func(w http.ResponseWriter, r *http.Request) {
		switch servlettest.Param(r, "action") {
		case "listPendingRequests":
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "ok", "requests": []map[string]any{
				{"requestId": 12, "email": "ravi@shop.in", "message": "please unblock"},
			}})
		case "approveRequest":
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "success"})
		default:
			servlettest.JSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Request already processed"})
		}
	})

	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	sess := store.Session("admin")
	require.NoError(t, statestore.Save(ctx, sess, statestore.KeyUser, types.User{UserID: "1", Email: "root@shop.in", Role: "admin"}))
	require.NoError(t, statestore.Save(ctx, sess, statestore.KeyIsAdmin, true))
	require.NoError(t, statestore.Save(ctx, store.Session("shopper"), statestore.KeyUser, types.User{UserID: "7", Email: "asha@shop.in"}))

	svc, err := NewService(ServiceParams{
		Servlet: fake.Client(t),
		Store:   store,
		Images:  images.NewResolver(fake.Server.URL, "/placeholder.png"),
	})
	require.NoError(t, err)
	return fixture{svc: svc, fake: fake, back: back, store: store}
}

func productInput() Input {
	return Input{
		Fields: map[string]string{
			"categoryId":  "2",
			"productName": "Desk Lamp",
			"description": "Warm light",
			"price":       "1299.50",
			"stock":       "0",
			"unexpected":  "dropped",
		},
		Files: []servlet.File{{Field: "image", Filename: "lamp.png", ContentType: "text/plain", Content: pngBytes}},
	}
}

func TestNewServiceRejectsBadTables(t *testing.T) {
	fake := servlettest.New(t)
	store, err := statestore.New(statestore.NewMemoryBackend(), time.Hour)
	require.NoError(t, err)

	_, err = NewService(ServiceParams{Servlet: fake.Client(t), Store: store, Tables: []TableSpec{{Resource: "x"}}})
	require.Error(t, err)

	dup := DefaultTables()[0]
	_, err = NewService(ServiceParams{Servlet: fake.Client(t), Store: store, Tables: []TableSpec{dup, dup}})
	require.Error(t, err)
}

func TestNonAdminIsRefused(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), "shopper", "products", pagination.Params{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Empty(t, f.fake.Calls(""))
}

func TestUnknownTableAndOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, "admin", "coupons", pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(ctx, "admin", "orders", Input{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Act(ctx, "admin", "users", "3", "promote", Input{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateProductSendsMultipartAndReloads(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Create(context.Background(), "admin", "products", productInput())
	require.NoError(t, err)
	require.Len(t, out.Page.Rows, 1)
	row := out.Page.Rows[0]
	assert.Equal(t, "1", row.ID)
	assert.Equal(t, "Desk Lamp", row.Values["name"])
	assert.Equal(t, f.fake.Server.URL+"/ImageServlet?productId=1", row.Values["image"])

	assert.Equal(t, "image/png", f.back.uploadType)
	assert.Equal(t, len(pngBytes), f.back.uploadBytes)

	calls := f.fake.Calls(servlet.EndpointAdmin)
	require.Len(t, calls, 2)
	assert.Equal(t, "addProduct", calls[0].Action)
	assert.Equal(t, "1299.5", calls[0].Form.Get("price"))
	assert.Equal(t, "0", calls[0].Form.Get("stock"))
	assert.Empty(t, calls[0].Form.Get("unexpected"))
	assert.Equal(t, "listProducts", calls[1].Action)
}

func TestCreateProductValidatesLocally(t *testing.T) {
	f := newFixture(t)
	in := productInput()
	in.Fields["price"] = "0"
	in.Fields["stock"] = "-1"
	in.Fields["categoryId"] = "two"
	in.Files[0].Content = []byte("just text, not a picture")

	_, err := f.svc.Create(context.Background(), "admin", "products", in)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "price")
	assert.Contains(t, details, "stock")
	assert.Equal(t, "must be a whole number", details["categoryId"])
	assert.Equal(t, "must be an image", details["image"])
	assert.Empty(t, f.fake.Calls(servlet.EndpointAdmin))
}

func TestDeleteSurfacesFailStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Delete(ctx, "admin", "products", "99")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, "deleteProduct failed", pkgerrors.As(err).Message())

	_, err = f.svc.Delete(ctx, "admin", "products", " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUserRowAction(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Act(context.Background(), "admin", "users", "3", "toggleStatus", Input{Fields: map[string]string{"active": "FALSE"}})
	require.NoError(t, err)
	require.Len(t, out.Page.Rows, 1)
	assert.Equal(t, false, out.Page.Rows[0].Values["active"])

	call := f.fake.Calls(servlet.EndpointAdmin)[0]
	assert.Equal(t, "toggleStatus", call.Action)
	assert.Equal(t, "3", call.Form.Get("userId"))
	assert.Equal(t, "false", call.Form.Get("active"))

	_, err = f.svc.Act(context.Background(), "admin", "users", "3", "toggleStatus", Input{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUnblockRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.List(ctx, "admin", "unblock-requests", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "12", page.Rows[0].ID)
	assert.Equal(t, "please unblock", page.Rows[0].Values["message"])

	_, err = f.svc.Act(ctx, "admin", "unblock-requests", "12", "approveRequest", Input{Fields: map[string]string{"adminNotes": "ok"}})
	require.NoError(t, err)

	_, err = f.svc.Act(ctx, "admin", "unblock-requests", "12", "rejectRequest", Input{})
	require.Error(t, err)
	assert.Equal(t, "Request already processed", pkgerrors.As(err).Message())
}

func TestTablesListsDeclaredResources(t *testing.T) {
	f := newFixture(t)
	names := []string{}
	for _, table := range f.svc.Tables() {
		names = append(names, table.Resource)
	}
	assert.Equal(t, []string{"products", "users", "orders", "categories", "discounts", "unblock-requests"}, names)
}

func TestListPagesThroughRows(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.back.users = append(f.back.users, map[string]any{"id": strconv.Itoa(10 + i), "name": "Shopper", "email": "s@shop.in", "active": true})
	}
	ctx := context.Background()

	first, err := f.svc.List(ctx, "admin", "users", pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Total)
	require.Len(t, first.Rows, 3)
	assert.Equal(t, "3", first.Rows[0].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, "admin", "users", pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, "12", second.Rows[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.List(ctx, "admin", "users", pagination.Params{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
