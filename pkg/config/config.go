package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Servlet       ServletConfig
	Session       SessionConfig
	Store         StoreConfig
	DB            DBConfig
	Redis         RedisConfig
	Checkout      CheckoutConfig
	Wishlist      WishlistConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Servlet.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Wishlist.validate(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend {
	case StoreBackendSQL:
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	case StoreBackendRedis:
		if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
			return nil, fmt.Errorf("%s or %s is required for the redis store backend", EnvRedisURL, EnvRedisAddr)
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port           string   `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel       string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"STOREFRONT_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServletConfig points at the servlet container that owns all persistent storefront data.
type ServletConfig struct {
	BaseURL          string        `envconfig:"STOREFRONT_SERVLET_BASE_URL" required:"true"`
	Timeout          time.Duration `envconfig:"STOREFRONT_SERVLET_TIMEOUT" default:"30s"`
	MaxUploadMB      int           `envconfig:"STOREFRONT_SERVLET_MAX_UPLOAD_MB" default:"10"`
	PlaceholderImage string        `envconfig:"STOREFRONT_PLACEHOLDER_IMAGE" default:"/images/placeholder.png"`
}

func (s ServletConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvServletBaseURL)
	}
	return nil
}

// SessionConfig controls the signed storefront session token handed to browsers.
type SessionConfig struct {
	Secret       string        `envconfig:"STOREFRONT_SESSION_SECRET" required:"true"`
	Issuer       string        `envconfig:"STOREFRONT_SESSION_ISSUER" default:"storefront-gateway"`
	TTL          time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"720h"`
	CookieName   string        `envconfig:"STOREFRONT_SESSION_COOKIE" default:"sf_session"`
	CookieSecure bool          `envconfig:"STOREFRONT_SESSION_COOKIE_SECURE" default:"false"`
}

// StoreConfig selects where per-session client state lives.
type StoreConfig struct {
	Backend string        `envconfig:"STOREFRONT_STORE_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"STOREFRONT_STORE_TTL" default:"720h"`
	// PurgeInterval paces the sweep of expired state rows; zero disables it.
	PurgeInterval time.Duration `envconfig:"STOREFRONT_STORE_PURGE_INTERVAL" default:"10m"`
}

func (s StoreConfig) validate() error {
	switch s.Backend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendSQL:
		return nil
	default:
		return fmt.Errorf("%s must be one of memory, redis, sql; got %q", EnvStoreBackend, s.Backend)
	}
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the state store should use the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CheckoutConfig struct {
	PaymentTimeout time.Duration `envconfig:"STOREFRONT_PAYMENT_TIMEOUT" default:"90s"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

type WishlistConfig struct {
	MovePolicy       string        `envconfig:"STOREFRONT_WISHLIST_MOVE_POLICY" default:"keep_both"`
	TogglePendingTTL time.Duration `envconfig:"STOREFRONT_WISHLIST_TOGGLE_PENDING_TTL" default:"15s"`
}

func (w WishlistConfig) validate() error {
	switch w.MovePolicy {
	case MovePolicyKeepBoth, MovePolicyCompensate:
		return nil
	default:
		return fmt.Errorf("%s must be %s or %s; got %q", EnvWishlistMovePolicy, MovePolicyKeepBoth, MovePolicyCompensate, w.MovePolicy)
	}
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:storefront.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range hostDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
