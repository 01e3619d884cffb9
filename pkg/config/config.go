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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Storefront   StorefrontConfig
	Invoice      InvoiceConfig
	Esewa        EsewaConfig
	Khalti       KhaltiConfig
	Mailer       MailerConfig
	HTTPClient   HTTPClientConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TINYTALES_APP_ENV" required:"true"`
	Port         string `envconfig:"TINYTALES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TINYTALES_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TINYTALES_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TINYTALES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TINYTALES_DB_DSN"`
	Driver string `envconfig:"TINYTALES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TINYTALES_DB_HOST"`
	LegacyPort     int    `envconfig:"TINYTALES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TINYTALES_DB_USER"`
	LegacyPassword string `envconfig:"TINYTALES_DB_PASSWORD"`
	LegacyName     string `envconfig:"TINYTALES_DB_NAME"`
	LegacySSLMode  string `envconfig:"TINYTALES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TINYTALES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TINYTALES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TINYTALES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TINYTALES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged at warn; 0 disables.
	SlowQuery time.Duration `envconfig:"TINYTALES_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TINYTALES_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TINYTALES_REDIS_ADDR"`
	Password     string        `envconfig:"TINYTALES_REDIS_PASSWORD"`
	DB           int           `envconfig:"TINYTALES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TINYTALES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TINYTALES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TINYTALES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TINYTALES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TINYTALES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TINYTALES_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TINYTALES_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TINYTALES_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TINYTALES_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TINYTALES_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"TINYTALES_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	CallbackIdempotencyTTL time.Duration `envconfig:"TINYTALES_CALLBACK_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TINYTALES_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TINYTALES_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TINYTALES_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TINYTALES_PUBSUB_ORDERS_TOPIC" default:"tt-order-events"`
	OrdersSubscription string `envconfig:"TINYTALES_PUBSUB_ORDERS_SUBSCRIPTION" default:"tt-order-notifications"`
}

type OutboxConfig struct {
	BatchSize           int           `envconfig:"TINYTALES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS      int           `envconfig:"TINYTALES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts         int           `envconfig:"TINYTALES_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention           time.Duration `envconfig:"TINYTALES_OUTBOX_RETENTION" default:"720h"`
	DeadLetterRetention time.Duration `envconfig:"TINYTALES_OUTBOX_DEAD_LETTER_RETENTION" default:"2160h"`
	PruneBatchSize      int           `envconfig:"TINYTALES_OUTBOX_PRUNE_BATCH_SIZE" default:"500"`
}

// StorefrontConfig carries the public URLs used to build provider return links.
type StorefrontConfig struct {
	SiteURL string `envconfig:"TINYTALES_SITE_URL" default:"http://localhost:3000"`
	APIURL  string `envconfig:"TINYTALES_API_URL" default:"http://localhost:8080"`
}

type InvoiceConfig struct {
	Prefix string `envconfig:"TINYTALES_INVOICE_PREFIX" default:"TT"`
}

type EsewaConfig struct {
	SecretKey   string `envconfig:"TINYTALES_ESEWA_SECRET_KEY"`
	ProductCode string `envconfig:"TINYTALES_ESEWA_PRODUCT_CODE" default:"EPAYTEST"`
	Env         string `envconfig:"TINYTALES_ESEWA_ENV" default:"test"`
}

// IsLive reports whether the production eSewa endpoint should be used.
func (e EsewaConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(e.Env), "live")
}

type KhaltiConfig struct {
	SecretKey string `envconfig:"TINYTALES_KHALTI_SECRET_KEY"`
	Env       string `envconfig:"TINYTALES_KHALTI_ENV" default:"test"`
	BaseURL   string `envconfig:"TINYTALES_KHALTI_BASE_URL"`
}

// Endpoint returns the Khalti API base URL, honouring an explicit override.
func (k KhaltiConfig) Endpoint() string {
	if base := strings.TrimRight(strings.TrimSpace(k.BaseURL), "/"); base != "" {
		return base
	}
	if strings.EqualFold(strings.TrimSpace(k.Env), "live") {
		return "https://khalti.com"
	}
	return "https://a.khalti.com"
}

type MailerConfig struct {
	APIKey  string `envconfig:"TINYTALES_MAILER_API_KEY"`
	BaseURL string `envconfig:"TINYTALES_MAILER_BASE_URL" default:"https://api.resend.com"`
	From    string `envconfig:"TINYTALES_MAILER_FROM" default:"Tiny Tales <orders@tinytales.com.np>"`
}

type HTTPClientConfig struct {
	Timeout time.Duration `envconfig:"TINYTALES_HTTP_CLIENT_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"TINYTALES_CRON_INTERVAL" default:"15m"`
	LeaseTTL            time.Duration `envconfig:"TINYTALES_CRON_LEASE_TTL" default:"10m"`
	StalePendingEnabled bool          `envconfig:"TINYTALES_CRON_STALE_PENDING_ENABLED" default:"false"`
	PendingTTL          time.Duration `envconfig:"TINYTALES_CRON_PENDING_TTL" default:"48h"`
}

// RateLimitConfig throttles the public checkout and payment initiation routes.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"TINYTALES_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"TINYTALES_RATE_LIMIT_IP" default:"30"`
	PhoneLimit int           `envconfig:"TINYTALES_RATE_LIMIT_PHONE" default:"5"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:tinytales.db?cache=shared"
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
