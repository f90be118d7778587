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
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Schedule     ScheduleConfig
	Pricing      PricingConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Schedule.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HALCYON_APP_ENV" required:"true"`
	Port         string `envconfig:"HALCYON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HALCYON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HALCYON_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"HALCYON_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type DBConfig struct {
	DSN    string `envconfig:"HALCYON_DB_DSN"`
	Driver string `envconfig:"HALCYON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HALCYON_DB_HOST"`
	LegacyPort     int    `envconfig:"HALCYON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HALCYON_DB_USER"`
	LegacyPassword string `envconfig:"HALCYON_DB_PASSWORD"`
	LegacyName     string `envconfig:"HALCYON_DB_NAME"`
	LegacySSLMode  string `envconfig:"HALCYON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HALCYON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HALCYON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HALCYON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HALCYON_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"HALCYON_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	TxAttempts         int           `envconfig:"HALCYON_DB_TX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HALCYON_REDIS_URL"`
	Address      string        `envconfig:"HALCYON_REDIS_ADDR"`
	Password     string        `envconfig:"HALCYON_REDIS_PASSWORD"`
	DB           int           `envconfig:"HALCYON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HALCYON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HALCYON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HALCYON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HALCYON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HALCYON_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"HALCYON_REDIS_KEY_PREFIX" default:"halcyon"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"HALCYON_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"HALCYON_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"HALCYON_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"HALCYON_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HALCYON_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HALCYON_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HALCYON_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HALCYON_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HALCYON_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"HALCYON_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"HALCYON_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"HALCYON_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow  time.Duration `envconfig:"HALCYON_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit int           `envconfig:"HALCYON_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	BookingWindow   time.Duration `envconfig:"HALCYON_RATE_LIMIT_BOOKING_WINDOW" default:"10m"`
	BookingIPLimit  int           `envconfig:"HALCYON_RATE_LIMIT_BOOKING_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HALCYON_AUTO_MIGRATE" default:"false"`
}

// ScheduleConfig describes the bookable business windows of a day.
type ScheduleConfig struct {
	Timezone       string `envconfig:"HALCYON_SCHEDULE_TIMEZONE" default:"UTC"`
	MorningStart   string `envconfig:"HALCYON_SCHEDULE_MORNING_START" default:"09:00"`
	MorningEnd     string `envconfig:"HALCYON_SCHEDULE_MORNING_END" default:"12:00"`
	AfternoonStart string `envconfig:"HALCYON_SCHEDULE_AFTERNOON_START" default:"13:00"`
	AfternoonEnd   string `envconfig:"HALCYON_SCHEDULE_AFTERNOON_END" default:"17:00"`
	SlotMinutes    int    `envconfig:"HALCYON_SCHEDULE_SLOT_MINUTES" default:"30"`
}

// Location resolves the configured IANA timezone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvScheduleTimezone, name, err)
	}
	return loc, nil
}

type PricingConfig struct {
	Currency          string `envconfig:"HALCYON_PRICING_CURRENCY" default:"usd"`
	FlatShippingCents int64  `envconfig:"HALCYON_PRICING_FLAT_SHIPPING_CENTS" default:"0"`
	TaxRate           string `envconfig:"HALCYON_PRICING_TAX_RATE" default:"0"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"HALCYON_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"HALCYON_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"HALCYON_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HALCYON_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HALCYON_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HALCYON_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AppointmentsTopic string `envconfig:"HALCYON_PUBSUB_APPOINTMENTS_TOPIC" default:"halcyon-appointment-events"`
	OrdersTopic       string `envconfig:"HALCYON_PUBSUB_ORDERS_TOPIC" default:"halcyon-order-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"HALCYON_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"HALCYON_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"HALCYON_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"HALCYON_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"HALCYON_CRON_INTERVAL" default:"1h"`
	PendingOrderTTL time.Duration `envconfig:"HALCYON_CRON_PENDING_ORDER_TTL" default:"72h"`
	JobTimeout      time.Duration `envconfig:"HALCYON_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
