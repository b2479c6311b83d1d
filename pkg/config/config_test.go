package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.Servlet.BaseURL != "http://localhost:8080/ecommerce" {
		t.Fatalf("unexpected servlet base url %q", cfg.Servlet.BaseURL)
	}
	if got := cfg.Checkout.PaymentTimeout; got != 90*time.Second {
		t.Fatalf("expected default payment timeout 90s, got %v", got)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Fatalf("expected memory backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.Wishlist.MovePolicy != MovePolicyKeepBoth {
		t.Fatalf("expected keep_both move policy, got %q", cfg.Wishlist.MovePolicy)
	}
	if cfg.Session.CookieName != "sf_session" {
		t.Fatalf("unexpected cookie name %q", cfg.Session.CookieName)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsRelativeServletURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvServletBaseURL, "/ecommerce")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), EnvServletBaseURL) {
		t.Fatalf("expected servlet url error, got %v", err)
	}
}

func TestLoad_RedisBackendNeedsAddress(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreBackend, StoreBackendRedis)

	if _, err := Load(); err == nil {
		t.Fatal("expected redis backend without address to fail")
	}

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error with redis url: %v", err)
	}
}

func TestLoad_UnknownMovePolicy(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvWishlistMovePolicy, "whatever")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown move policy to fail")
	}
}

func TestLoad_SQLBackendBuildsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreBackend, StoreBackendSQL)
	t.Setenv(EnvDBHost, "db.local")
	t.Setenv(EnvDBUser, "shop")
	t.Setenv(EnvDBName, "storefront")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.DSN != "postgres://shop@db.local:5432/storefront?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.DB.DSN)
	}
}

func TestLoad_SQLBackendSQLiteDefaultDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreBackend, StoreBackendSQL)
	t.Setenv(EnvDBDriver, DBDriverSQLite)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DB.IsSQLite() || cfg.DB.DSN == "" {
		t.Fatalf("expected sqlite dsn, got %+v", cfg.DB)
	}
}

func TestLoad_SQLBackendMissingHost(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreBackend, StoreBackendSQL)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), EnvDBDSN) {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvServletBaseURL, "http://localhost:8080/ecommerce")
	t.Setenv(EnvSessionSecret, "secret")
	for _, key := range []string{
		EnvStoreBackend, EnvDBDSN, EnvDBDriver, EnvDBHost, EnvDBUser, EnvDBName,
		EnvRedisURL, EnvRedisAddr, EnvWishlistMovePolicy, EnvPaymentTimeout,
	} {
		unsetEnv(t, key)
	}
}

// unsetEnv removes key for the test while letting t.Setenv restore the previous value.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
