package config

const EnvPrefix = "HALCYON"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "HALCYON_APP_ENV"
	EnvPort                = "HALCYON_APP_PORT"
	EnvLogLevel            = "HALCYON_LOG_LEVEL"
	EnvDBDSN               = "HALCYON_DB_DSN"
	EnvDBHost              = "HALCYON_DB_HOST"
	EnvDBUser              = "HALCYON_DB_USER"
	EnvDBName              = "HALCYON_DB_NAME"
	EnvDBPassword          = "HALCYON_DB_PASSWORD"
	EnvRedisURL            = "HALCYON_REDIS_URL"
	EnvJWTSecret           = "HALCYON_JWT_SECRET"
	EnvJWTIssuer           = "HALCYON_JWT_ISSUER"
	EnvJWTExpMins          = "HALCYON_JWT_EXPIRATION_MINUTES"
	EnvScheduleTimezone    = "HALCYON_SCHEDULE_TIMEZONE"
	EnvPricingTaxRate      = "HALCYON_PRICING_TAX_RATE"
	EnvStripeAPIKey        = "HALCYON_STRIPE_API_KEY"
	EnvStripeSecret        = "HALCYON_STRIPE_WEBHOOK_SECRET"
	EnvPubSubOrdersTopic   = "HALCYON_PUBSUB_ORDERS_TOPIC"
	EnvCronPendingOrderTTL = "HALCYON_CRON_PENDING_ORDER_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
