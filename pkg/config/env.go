package config

// EnvPrefix is empty because every field tag already carries the full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "TINYTALES_APP_ENV"
	EnvPort        = "TINYTALES_APP_PORT"
	EnvLogLevel    = "TINYTALES_LOG_LEVEL"
	EnvDBDSN       = "TINYTALES_DB_DSN"
	EnvDBHost      = "TINYTALES_DB_HOST"
	EnvDBPort      = "TINYTALES_DB_PORT"
	EnvDBUser      = "TINYTALES_DB_USER"
	EnvDBPassword  = "TINYTALES_DB_PASSWORD"
	EnvDBName      = "TINYTALES_DB_NAME"
	EnvUseSQLite   = "TINYTALES_USE_SQLITE"
	EnvRedisURL    = "TINYTALES_REDIS_URL"
	EnvJWTSecret   = "TINYTALES_JWT_SECRET"
	EnvJWTIssuer   = "TINYTALES_JWT_ISSUER"
	EnvJWTExpMins  = "TINYTALES_JWT_EXPIRATION_MINUTES"
	EnvEsewaSecret = "TINYTALES_ESEWA_SECRET_KEY"
	EnvEsewaEnv    = "TINYTALES_ESEWA_ENV"
	EnvKhaltiKey   = "TINYTALES_KHALTI_SECRET_KEY"
	EnvKhaltiEnv   = "TINYTALES_KHALTI_ENV"
	EnvKhaltiBase  = "TINYTALES_KHALTI_BASE_URL"
	EnvSiteURL     = "TINYTALES_SITE_URL"
	EnvAPIURL      = "TINYTALES_API_URL"
	EnvInvoicePfx  = "TINYTALES_INVOICE_PREFIX"
	EnvCronPending = "TINYTALES_CRON_PENDING_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
