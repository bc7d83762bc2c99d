package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "GROUPBUY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "GROUPBUY_APP_ENV"
	EnvPort        = "GROUPBUY_APP_PORT"
	EnvDBDSN       = "GROUPBUY_DB_DSN"
	EnvDBHost      = "GROUPBUY_DB_HOST"
	EnvDBUser      = "GROUPBUY_DB_USER"
	EnvDBName      = "GROUPBUY_DB_NAME"
	EnvRedisURL    = "GROUPBUY_REDIS_URL"
	EnvJWTSecret   = "GROUPBUY_JWT_SECRET"
	EnvJWTIssuer   = "GROUPBUY_JWT_ISSUER"
	EnvJWTExpMins  = "GROUPBUY_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite   = "GROUPBUY_USE_SQLITE"
	EnvPaymentsKey = "GROUPBUY_PAYMENTS_PROVIDER"

	EnvSquareAccessToken = "GROUPBUY_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID  = "GROUPBUY_SQUARE_LOCATION_ID"

	EnvEscrowHoldTimeout   = "GROUPBUY_ESCROW_HOLD_TIMEOUT"
	EnvEscrowRetryBase     = "GROUPBUY_ESCROW_RETRY_BASE"
	EnvEscrowRetryMax      = "GROUPBUY_ESCROW_RETRY_MAX"
	EnvEscrowRetryAttempts = "GROUPBUY_ESCROW_RETRY_MAX_ATTEMPTS"

	EnvGuardBackend        = "GROUPBUY_GUARD_BACKEND"
	EnvGuardAcquireTimeout = "GROUPBUY_GUARD_ACQUIRE_TIMEOUT"

	EnvResolutionInterval = "GROUPBUY_RESOLUTION_SWEEP_INTERVAL"

	EnvAPICORSOrigins = "GROUPBUY_API_CORS_ORIGINS"

	EnvGCPProjectID          = "GROUPBUY_GCP_PROJECT_ID"
	EnvPubSubNotificationTop = "GROUPBUY_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	PaymentsProviderSquare    = "square"
	PaymentsProviderSimulated = "simulated"
)

const (
	GuardBackendLocal = "local"
	GuardBackendRedis = "redis"
)
