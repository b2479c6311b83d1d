package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-gateway/api/controllers"
	"github.com/angelmondragon/storefront-gateway/api/middleware"
	"github.com/angelmondragon/storefront-gateway/internal/admin"
	"github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/catalog"
	"github.com/angelmondragon/storefront-gateway/internal/checkout"
	"github.com/angelmondragon/storefront-gateway/internal/orders"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	"github.com/angelmondragon/storefront-gateway/internal/wishlist"
	"github.com/angelmondragon/storefront-gateway/pkg/config"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-gateway/pkg/redis"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
)

// RouterParams carries everything the gateway routes are wired to.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       *statestore.Store
	StorePinger pkgredis.Pinger
	Idempotency pkgredis.IdempotencyStore
	// RateLimits counts auth attempts; redis when configured, otherwise process-local.
	RateLimits  middleware.RateLimiter
	Metrics     http.Handler

	Sessions  session.Service
	Cart      cart.Service
	Wishlist  wishlist.Service
	Catalog   catalog.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Admin     admin.Service
	MaxUpload int64
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.StorePinger))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	gate := func(access session.Access) func(http.Handler) http.Handler {
		return middleware.Gate(access, p.Store, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.Checkout.IdempotencyTTL, logg))

		r.Get("/session", controllers.SessionRestore(p.Sessions, logg))
		r.Get("/overview", controllers.Overview(p.Sessions, p.Cart, p.Wishlist, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(gate(session.AccessPublicOnly), middleware.AuthRateLimit(loginPolicy, p.RateLimits, logg)).
				Post("/login", controllers.AuthLogin(p.Sessions, logg))
			r.With(gate(session.AccessPublicOnly), middleware.AuthRateLimit(registerPolicy, p.RateLimits, logg)).
				Post("/register", controllers.AuthRegister(p.Sessions, logg))
			r.Post("/register/validate", controllers.AuthRegisterValidate(logg))
			r.Post("/logout", controllers.AuthLogout(p.Sessions, logg))
			r.Post("/unblock-request", controllers.AuthUnblockRequest(p.Sessions, logg))
		})

		r.Get("/products", controllers.ProductsList(p.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductGet(p.Catalog, logg))
		r.Get("/categories", controllers.CategoriesList(p.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(gate(session.AccessProtected))

			r.Get("/profile", controllers.ProfileGet(p.Sessions, logg))
			r.Patch("/profile", controllers.ProfileUpdate(p.Sessions, logg))
			r.Post("/profile/password", controllers.ProfilePassword(p.Sessions, logg))

			r.Post("/products/{productId}/buy-now", controllers.ProductBuyNow(p.Catalog, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(p.Cart, logg))
				r.Delete("/", controllers.CartClear(p.Cart, logg))
				r.Post("/select-all", controllers.CartSelectAll(p.Cart, logg))
				r.Post("/items", controllers.CartAddItem(p.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(p.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(p.Cart, logg))
				r.Post("/items/{productId}/step", controllers.CartStepItem(p.Cart, logg))
				r.Post("/items/{productId}/select", controllers.CartSelectItem(p.Cart, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistGet(p.Wishlist, logg))
				r.Delete("/", controllers.WishlistClear(p.Wishlist, logg))
				r.Get("/count", controllers.WishlistCount(p.Wishlist, logg))
				r.Post("/items", controllers.WishlistAdd(p.Wishlist, logg))
				r.Delete("/items/{productId}", controllers.WishlistRemove(p.Wishlist, logg))
				r.Post("/items/{productId}/toggle", controllers.WishlistToggle(p.Wishlist, logg))
				r.Post("/items/{productId}/move-to-cart", controllers.WishlistMoveToCart(p.Wishlist, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutStatus(p.Checkout, logg))
				r.Post("/", controllers.CheckoutBegin(p.Checkout, logg))
				r.Post("/address", controllers.CheckoutAddress(p.Checkout, logg))
				r.Get("/coupons", controllers.CheckoutCoupons(p.Checkout, logg))
				r.Post("/coupon", controllers.CheckoutApplyCoupon(p.Checkout, logg))
				r.Delete("/coupon", controllers.CheckoutRemoveCoupon(p.Checkout, logg))
				r.Post("/payment", controllers.CheckoutPay(p.Checkout, logg))
			})

			r.Get("/orders", controllers.OrdersHistory(p.Orders, logg))
			r.Post("/orders/{orderId}/reorder", controllers.OrdersReorder(p.Cart, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.Checkout.IdempotencyTTL, logg))

		r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimits, logg)).
			Post("/auth/login", controllers.AdminAuthLogin(p.Sessions, logg))
		r.Post("/auth/logout", controllers.AuthLogout(p.Sessions, logg))

		r.Group(func(r chi.Router) {
			r.Use(gate(session.AccessAdmin))
			r.Get("/tables", controllers.AdminTables(p.Admin, logg))
			r.Get("/tables/{resource}", controllers.AdminTableList(p.Admin, logg))
			r.Post("/tables/{resource}", controllers.AdminTableCreate(p.Admin, p.MaxUpload, logg))
			r.Put("/tables/{resource}/{id}", controllers.AdminTableUpdate(p.Admin, p.MaxUpload, logg))
			r.Delete("/tables/{resource}/{id}", controllers.AdminTableDelete(p.Admin, logg))
			r.Post("/tables/{resource}/{id}/actions/{action}", controllers.AdminTableAction(p.Admin, p.MaxUpload, logg))
		})
	})

	return r
}
