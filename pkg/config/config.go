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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	MercadoPago  MercadoPagoConfig
	Webhook      WebhookConfig
	Sweep        SweepConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEMBERFEES_APP_ENV" required:"true"`
	Port         string `envconfig:"MEMBERFEES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEMBERFEES_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEMBERFEES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEMBERFEES_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEMBERFEES_DB_DSN"`
	Driver string `envconfig:"MEMBERFEES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEMBERFEES_DB_HOST"`
	LegacyPort     int    `envconfig:"MEMBERFEES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEMBERFEES_DB_USER"`
	LegacyPassword string `envconfig:"MEMBERFEES_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEMBERFEES_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEMBERFEES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEMBERFEES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEMBERFEES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEMBERFEES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEMBERFEES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEMBERFEES_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEMBERFEES_REDIS_ADDR"`
	Password     string        `envconfig:"MEMBERFEES_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEMBERFEES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEMBERFEES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEMBERFEES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEMBERFEES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEMBERFEES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEMBERFEES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEMBERFEES_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEMBERFEES_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MEMBERFEES_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MEMBERFEES_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type MercadoPagoConfig struct {
	AccessToken     string        `envconfig:"MEMBERFEES_MP_ACCESS_TOKEN"`
	WebhookSecret   string        `envconfig:"MEMBERFEES_MP_WEBHOOK_SECRET"`
	BaseURL         string        `envconfig:"MEMBERFEES_MP_BASE_URL" default:"https://api.mercadopago.com"`
	Timeout         time.Duration `envconfig:"MEMBERFEES_MP_TIMEOUT" default:"30s"`
	MaxRetries      int           `envconfig:"MEMBERFEES_MP_MAX_RETRIES" default:"3"`
	SuccessURL      string        `envconfig:"MEMBERFEES_MP_SUCCESS_URL"`
	FailureURL      string        `envconfig:"MEMBERFEES_MP_FAILURE_URL"`
	PendingURL      string        `envconfig:"MEMBERFEES_MP_PENDING_URL"`
	NotificationURL string        `envconfig:"MEMBERFEES_MP_NOTIFICATION_URL"`
	StatementPrefix string        `envconfig:"MEMBERFEES_MP_STATEMENT_PREFIX" default:"MEMBERFEES"`
}

type WebhookConfig struct {
	DedupTTL time.Duration `envconfig:"MEMBERFEES_WEBHOOK_DEDUP_TTL" default:"72h"`
}

type SweepConfig struct {
	PendingTTL time.Duration `envconfig:"MEMBERFEES_SWEEP_PENDING_TTL" default:"72h"`
	Limit      int           `envconfig:"MEMBERFEES_SWEEP_LIMIT" default:"250"`
	Interval   time.Duration `envconfig:"MEMBERFEES_SWEEP_INTERVAL" default:"1h"`
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"MEMBERFEES_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"MEMBERFEES_RATE_LIMIT_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEMBERFEES_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEMBERFEES_AUTO_MIGRATE" default:"false"`
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
