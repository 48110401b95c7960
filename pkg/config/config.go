package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Auth     AuthConfig
	Uploads  UploadsConfig
	Mail     MailConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret          string
	Expiration      time.Duration
	ResetExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig tunes login lockout and password reset codes.
type AuthConfig struct {
	MaxFailedLogins int
	ResetCodeTTL    time.Duration
	ResetCodeLength int
	SecureCookies   bool
}

// UploadsConfig controls grade certificate storage and validation.
type UploadsConfig struct {
	Dir              string
	PublicPrefix     string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	ThumbnailWidth   int
	MaxPixels        int64
}

// MailConfig configures outbound email. Without a host the log mailer is used.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// Enabled reports whether SMTP delivery is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

// CacheConfig governs the Redis backed read caches.
type CacheConfig struct {
	Enabled    bool
	CatalogTTL time.Duration
	StatsTTL   time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:          v.GetString("JWT_SECRET"),
		Expiration:      parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		ResetExpiration: parseDuration(v.GetString("JWT_RESET_EXPIRATION"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFailed := v.GetInt("AUTH_MAX_FAILED_LOGINS")
	if maxFailed <= 0 {
		maxFailed = 3
	}
	codeLength := v.GetInt("AUTH_RESET_CODE_LENGTH")
	if codeLength < 4 {
		codeLength = 6
	}
	cfg.Auth = AuthConfig{
		MaxFailedLogins: maxFailed,
		ResetCodeTTL:    parseDuration(v.GetString("AUTH_RESET_CODE_TTL"), 15*time.Minute),
		ResetCodeLength: codeLength,
		SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:              v.GetString("UPLOADS_DIR"),
		PublicPrefix:     v.GetString("UPLOADS_PUBLIC_PREFIX"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 15*time.Minute),
		ThumbnailWidth:   v.GetInt("UPLOADS_THUMBNAIL_WIDTH"),
		MaxPixels:        v.GetInt64("UPLOADS_MAX_PIXELS"),
	}

	cfg.Mail = MailConfig{
		Host:       v.GetString("SMTP_HOST"),
		Port:       v.GetInt("SMTP_PORT"),
		Username:   v.GetString("SMTP_USER"),
		Password:   v.GetString("SMTP_PASS"),
		From:       v.GetString("SMTP_FROM"),
		Workers:    v.GetInt("MAIL_WORKERS"),
		MaxRetries: v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("MAIL_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		CatalogTTL: parseDuration(v.GetString("CACHE_CATALOG_TTL"), 5*time.Minute),
		StatsTTL:   parseDuration(v.GetString("CACHE_STATS_TTL"), time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("METRICS_ENABLED")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "zyu_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_RESET_EXPIRATION", "15m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUTH_MAX_FAILED_LOGINS", 3)
	v.SetDefault("AUTH_RESET_CODE_TTL", "15m")
	v.SetDefault("AUTH_RESET_CODE_LENGTH", 6)
	v.SetDefault("AUTH_SECURE_COOKIES", false)

	v.SetDefault("UPLOADS_DIR", "./public/uploads")
	v.SetDefault("UPLOADS_PUBLIC_PREFIX", "/uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/gif")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "15m")
	v.SetDefault("UPLOADS_THUMBNAIL_WIDTH", 320)
	v.SetDefault("UPLOADS_MAX_PIXELS", 40_000_000)

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "no-reply@zyu.edu")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "2s")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_CATALOG_TTL", "5m")
	v.SetDefault("CACHE_STATS_TTL", "1m")

	v.SetDefault("METRICS_ENABLED", true)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
