package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
	StoreBackendSQL    = "sql"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	MovePolicyKeepBoth   = "keep_both"
	MovePolicyCompensate = "compensate"
)

const (
	EnvAppEnv             = "STOREFRONT_APP_ENV"
	EnvPort               = "STOREFRONT_APP_PORT"
	EnvServletBaseURL     = "STOREFRONT_SERVLET_BASE_URL"
	EnvSessionSecret      = "STOREFRONT_SESSION_SECRET"
	EnvStoreBackend       = "STOREFRONT_STORE_BACKEND"
	EnvDBDSN              = "STOREFRONT_DB_DSN"
	EnvDBDriver           = "STOREFRONT_DB_DRIVER"
	EnvDBHost             = "STOREFRONT_DB_HOST"
	EnvDBUser             = "STOREFRONT_DB_USER"
	EnvDBName             = "STOREFRONT_DB_NAME"
	EnvRedisURL           = "STOREFRONT_REDIS_URL"
	EnvRedisAddr          = "STOREFRONT_REDIS_ADDR"
	EnvPaymentTimeout     = "STOREFRONT_PAYMENT_TIMEOUT"
	EnvWishlistMovePolicy = "STOREFRONT_WISHLIST_MOVE_POLICY"
)

var hostDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
