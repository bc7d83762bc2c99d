package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	API          APIConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Square       SquareConfig
	Escrow       EscrowConfig
	Guard        GuardConfig
	Resolution   ResolutionConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Guard.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROUPBUY_APP_ENV" required:"true"`
	Port         string `envconfig:"GROUPBUY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROUPBUY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROUPBUY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig tunes the HTTP surface.
type APIConfig struct {
	CORSOrigins     []string      `envconfig:"GROUPBUY_API_CORS_ORIGINS" default:"http://localhost:3000"`
	OrderRateLimit  int           `envconfig:"GROUPBUY_API_ORDER_RATE_LIMIT" default:"20"`
	OrderRateWindow time.Duration `envconfig:"GROUPBUY_API_ORDER_RATE_WINDOW" default:"1m"`
}

type ServiceConfig struct {
	Kind string `envconfig:"GROUPBUY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROUPBUY_DB_DSN"`
	Driver string `envconfig:"GROUPBUY_DB_DRIVER" default:"postgres"`

	SQLitePath string `envconfig:"GROUPBUY_DB_SQLITE_PATH" default:"groupbuy.db"`

	LegacyHost     string `envconfig:"GROUPBUY_DB_HOST"`
	LegacyPort     int    `envconfig:"GROUPBUY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROUPBUY_DB_USER"`
	LegacyPassword string `envconfig:"GROUPBUY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROUPBUY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROUPBUY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROUPBUY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROUPBUY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPBUY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROUPBUY_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPBUY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPBUY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPBUY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROUPBUY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROUPBUY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GROUPBUY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GROUPBUY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GROUPBUY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GROUPBUY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GROUPBUY_AUTO_MIGRATE" default:"false"`
}

type PaymentsConfig struct {
	Provider string `envconfig:"GROUPBUY_PAYMENTS_PROVIDER" default:"square"`
}

// UsesSquare reports whether the configured provider is the Square gateway.
func (p PaymentsConfig) UsesSquare() bool {
	return strings.EqualFold(strings.TrimSpace(p.Provider), PaymentsProviderSquare)
}

func (p PaymentsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Provider)) {
	case PaymentsProviderSquare, PaymentsProviderSimulated:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPaymentsKey, PaymentsProviderSquare, PaymentsProviderSimulated)
	}
}

type SquareConfig struct {
	AccessToken string `envconfig:"GROUPBUY_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"GROUPBUY_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"GROUPBUY_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"GROUPBUY_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type EscrowConfig struct {
	HoldTimeout      time.Duration `envconfig:"GROUPBUY_ESCROW_HOLD_TIMEOUT" default:"10s"`
	RetryBase        time.Duration `envconfig:"GROUPBUY_ESCROW_RETRY_BASE" default:"1m"`
	RetryMax         time.Duration `envconfig:"GROUPBUY_ESCROW_RETRY_MAX" default:"6h"`
	RetryMaxAttempts int           `envconfig:"GROUPBUY_ESCROW_RETRY_MAX_ATTEMPTS" default:"8"`
}

type GuardConfig struct {
	Backend        string        `envconfig:"GROUPBUY_GUARD_BACKEND" default:"local"`
	AcquireTimeout time.Duration `envconfig:"GROUPBUY_GUARD_ACQUIRE_TIMEOUT" default:"5s"`
	LockTTL        time.Duration `envconfig:"GROUPBUY_GUARD_LOCK_TTL" default:"30s"`
}

// UsesRedis reports whether batch locks are coordinated through Redis.
func (g GuardConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(g.Backend), GuardBackendRedis)
}

func (g GuardConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(g.Backend)) {
	case GuardBackendLocal, GuardBackendRedis:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvGuardBackend, GuardBackendLocal, GuardBackendRedis)
	}
	if g.AcquireTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvGuardAcquireTimeout)
	}
	return nil
}

type ResolutionConfig struct {
	SweepInterval time.Duration `envconfig:"GROUPBUY_RESOLUTION_SWEEP_INTERVAL" default:"1m"`
	SettleBatch   int           `envconfig:"GROUPBUY_RESOLUTION_SETTLE_BATCH" default:"100"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GROUPBUY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GROUPBUY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GROUPBUY_GOOGLE_APPLICATION_CREDENTIALS"`
	PubSubEndpoint         string `envconfig:"GROUPBUY_PUBSUB_EMULATOR_HOST"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"GROUPBUY_PUBSUB_NOTIFICATION_TOPIC" default:"groupbuy-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GROUPBUY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GROUPBUY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GROUPBUY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"GROUPBUY_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
