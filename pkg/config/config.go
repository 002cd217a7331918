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
	GCP          GCPConfig
	GCS          GCSConfig
	Anthropic    AnthropicConfig
	Upload       UploadConfig
	Extraction   ExtractionConfig
	Warranty     WarrantyConfig
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
	Env          string `envconfig:"WVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"WVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WVAULT_DB_DSN"`
	Driver string `envconfig:"WVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"WVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WVAULT_DB_USER"`
	LegacyPassword string `envconfig:"WVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"WVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"WVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"WVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"WVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WVAULT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WVAULT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WVAULT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WVAULT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WVAULT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"WVAULT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WVAULT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"WVAULT_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"WVAULT_GCS_DOWNLOAD_URL_EXPIRY" default:"10m"`
}

type AnthropicConfig struct {
	APIKey    string `envconfig:"WVAULT_ANTHROPIC_API_KEY" required:"true"`
	Model     string `envconfig:"WVAULT_ANTHROPIC_MODEL" default:"claude-sonnet-4-5-20250929"`
	MaxTokens int64  `envconfig:"WVAULT_ANTHROPIC_MAX_TOKENS" default:"1024"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"WVAULT_MAX_UPLOAD_MB" default:"10"`

	// Per-user fixed window on the upload endpoint; each upload costs a
	// storage write and a model call.
	RateLimit       int64         `envconfig:"WVAULT_UPLOAD_RATE_LIMIT" default:"30"`
	RateLimitWindow time.Duration `envconfig:"WVAULT_UPLOAD_RATE_LIMIT_WINDOW" default:"1m"`
}

func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadMB) * 1024 * 1024
}

type ExtractionConfig struct {
	// Timeout bounds the model call; independent of the signed URL validity.
	Timeout      time.Duration `envconfig:"WVAULT_EXTRACTION_TIMEOUT" default:"45s"`
	SignedURLTTL time.Duration `envconfig:"WVAULT_EXTRACTION_SIGNED_URL_TTL" default:"60s"`
}

type WarrantyConfig struct {
	DefaultDurationDays int `envconfig:"WVAULT_WARRANTY_DEFAULT_DURATION_DAYS" default:"365"`
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
