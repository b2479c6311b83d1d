package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-gateway/api/middleware"
	"github.com/angelmondragon/storefront-gateway/api/routes"
	"github.com/angelmondragon/storefront-gateway/internal/admin"
	"github.com/angelmondragon/storefront-gateway/internal/cart"
	"github.com/angelmondragon/storefront-gateway/internal/catalog"
	"github.com/angelmondragon/storefront-gateway/internal/checkout"
	"github.com/angelmondragon/storefront-gateway/internal/cron"
	"github.com/angelmondragon/storefront-gateway/internal/orders"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	"github.com/angelmondragon/storefront-gateway/internal/wishlist"
	"github.com/angelmondragon/storefront-gateway/pkg/config"
	"github.com/angelmondragon/storefront-gateway/pkg/db"
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/instance"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/metrics"
	"github.com/angelmondragon/storefront-gateway/pkg/migrate"
	"github.com/angelmondragon/storefront-gateway/pkg/redis"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
)

const (
	shutdownTimeout = 20 * time.Second
	purgeLockKey    = "storefront:maintenance:%s"
)

// infra holds the resources main owns and must close on the way out.
type infra struct {
	redis *redis.Client
	db    *db.Client
}

func (i *infra) Close() error {
	var errs error
	if i.redis != nil {
		errs = multierr.Append(errs, i.redis.Close())
	}
	if i.db != nil {
		errs = multierr.Append(errs, i.db.Close())
	}
	return errs
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "gateway stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"store":    cfg.Store.Backend,
		"instance": instance.GetID(),
	})

	res := &infra{}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logg.Error(ctx, "error closing resources", closeErr)
		}
	}()

	backend, err := openBackend(ctx, cfg, logg, res)
	if err != nil {
		return err
	}
	store, err := statestore.New(backend, cfg.Store.TTL)
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}

	var (
		reg            *prometheus.Registry
		metricsHandler http.Handler
	)
	if cfg.FeatureFlags.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	// nil registerers yield no-op collectors
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}

	client, err := servlet.NewClient(cfg.Servlet.BaseURL,
		servlet.WithTimeout(cfg.Servlet.Timeout),
		servlet.WithCookieJar(statestore.NewCookieJar(store)),
		servlet.WithMetrics(metrics.NewServletMetrics(registerer)),
		servlet.WithLogger(logg),
	)
	if err != nil {
		return fmt.Errorf("servlet client: %w", err)
	}
	resolver := images.NewResolver(cfg.Servlet.BaseURL, cfg.Servlet.PlaceholderImage)
	maxUpload := int64(cfg.Servlet.MaxUploadMB) << 20

	sessions, err := session.NewService(session.ServiceParams{Servlet: client, Store: store, Logger: logg})
	if err != nil {
		return fmt.Errorf("session service: %w", err)
	}
	carts, err := cart.NewService(cart.ServiceParams{Servlet: client, Store: store, Logger: logg})
	if err != nil {
		return fmt.Errorf("cart service: %w", err)
	}
	wishlists, err := wishlist.NewService(wishlist.ServiceParams{
		Servlet:    client,
		Store:      store,
		Cart:       carts,
		Logger:     logg,
		MovePolicy: cfg.Wishlist.MovePolicy,
		PendingTTL: cfg.Wishlist.TogglePendingTTL,
	})
	if err != nil {
		return fmt.Errorf("wishlist service: %w", err)
	}
	products, err := catalog.NewService(catalog.ServiceParams{Servlet: client, Store: store, Cart: carts, Images: resolver, Logger: logg})
	if err != nil {
		return fmt.Errorf("catalog service: %w", err)
	}
	checkouts, err := checkout.NewService(checkout.ServiceParams{
		Servlet:        client,
		Store:          store,
		Cart:           carts,
		Metrics:        metrics.NewCheckoutMetrics(registerer),
		Logger:         logg,
		PaymentTimeout: cfg.Checkout.PaymentTimeout,
	})
	if err != nil {
		return fmt.Errorf("checkout service: %w", err)
	}
	history, err := orders.NewService(orders.ServiceParams{Servlet: client, Store: store, Logger: logg})
	if err != nil {
		return fmt.Errorf("orders service: %w", err)
	}
	console, err := admin.NewService(admin.ServiceParams{
		Servlet:        client,
		Store:          store,
		Images:         resolver,
		MaxUploadBytes: maxUpload,
		Logger:         logg,
	})
	if err != nil {
		return fmt.Errorf("admin service: %w", err)
	}

	params := routes.RouterParams{
		Config:      cfg,
		Logger:      logg,
		Store:       store,
		StorePinger: backend,
		Idempotency: statestore.NewIdempotencyStore(backend),
		Metrics:     metricsHandler,
		Sessions:    sessions,
		Cart:        carts,
		Wishlist:    wishlists,
		Catalog:     products,
		Checkout:    checkouts,
		Orders:      history,
		Admin:       console,
		MaxUpload:   maxUpload,
	}
	localRates := middleware.NewLocalRateStore()
	if res.redis != nil {
		params.RateLimits = res.redis
	} else {
		params.RateLimits = localRates
	}

	maintenance, err := newMaintenance(cfg, logg, res, registerer, backend, localRates)
	if err != nil {
		return err
	}
	if maintenance != nil {
		go func() {
			if err := maintenance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "maintenance loop stopped", err)
			}
		}()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "gateway shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// payments already handed to PaymentServlet are allowed to settle before state is closed
	return multierr.Combine(
		server.Shutdown(shutdownCtx),
		checkouts.Wait(shutdownCtx),
	)
}

func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger, res *infra) (statestore.Backend, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		res.redis = client
		return statestore.NewRedisBackend(client)
	case config.StoreBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		res.db = client
		if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
			return nil, fmt.Errorf("dev migrations: %w", err)
		}
		return statestore.NewSQLBackend(client)
	default:
		return statestore.NewMemoryBackend(), nil
	}
}

// newMaintenance sweeps expired state from backends without native TTL eviction.
// It returns nil when there is nothing to sweep or the interval is zero.
func newMaintenance(cfg *config.Config, logg *logger.Logger, res *infra, reg prometheus.Registerer, backend statestore.Backend, rates *middleware.LocalRateStore) (*cron.Service, error) {
	if cfg.Store.PurgeInterval <= 0 {
		return nil, nil
	}
	targets := []cron.NamedPurger{}
	if p, ok := backend.(cron.Purger); ok {
		targets = append(targets, cron.NamedPurger{Name: "state", Purger: p})
	}
	if res.redis == nil {
		targets = append(targets, cron.NamedPurger{Name: "auth-rate", Purger: rates})
	}
	job := cron.NewPurgeJob(logg, targets...)
	if job == nil {
		return nil, nil
	}

	var lock cron.Lock = &cron.LocalLock{}
	if res.redis != nil {
		redisLock, err := cron.NewRedisLock(res.redis, fmt.Sprintf(purgeLockKey, cfg.App.Env), cfg.Store.PurgeInterval)
		if err != nil {
			return nil, fmt.Errorf("maintenance lock: %w", err)
		}
		lock = redisLock
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Store.PurgeInterval,
	})
}
