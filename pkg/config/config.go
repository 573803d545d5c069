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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Enrollment EnrollmentConfig
	Scheduling SchedulingConfig
	Calendar   CalendarConfig
	Cache      CacheConfig
	Metrics    MetricsConfig
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

// JWTConfig holds the parameters used to verify bearer tokens issued by the
// identity provider.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentConfig tunes the enrollment workflow.
type EnrollmentConfig struct {
	CreditLimit          int
	WithdrawalWindowDays int
	LockTTL              time.Duration
}

// SchedulingConfig tunes meeting conflict evaluation.
type SchedulingConfig struct {
	ConflictCheckTimeout time.Duration
}

// CalendarConfig configures the best-effort calendar notification webhook.
type CalendarConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig governs transcript caching.
type CacheConfig struct {
	TranscriptEnabled bool
	TranscriptTTL     time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Enrollment = EnrollmentConfig{
		CreditLimit:          positiveInt(v.GetInt("ENROLLMENT_CREDIT_LIMIT"), 24),
		WithdrawalWindowDays: positiveInt(v.GetInt("ENROLLMENT_WITHDRAWAL_WINDOW_DAYS"), 14),
		LockTTL:              parseDuration(v.GetString("ENROLLMENT_LOCK_TTL"), 5*time.Second),
	}

	cfg.Scheduling = SchedulingConfig{
		ConflictCheckTimeout: parseDuration(v.GetString("SCHEDULING_CONFLICT_CHECK_TIMEOUT"), 2*time.Second),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:    v.GetBool("ENABLE_CALENDAR_SYNC"),
		WebhookURL: v.GetString("CALENDAR_WEBHOOK_URL"),
		Timeout:    parseDuration(v.GetString("CALENDAR_TIMEOUT"), 5*time.Second),
		Workers:    positiveInt(v.GetInt("CALENDAR_WORKERS"), 2),
		MaxRetries: v.GetInt("CALENDAR_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CALENDAR_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Cache = CacheConfig{
		TranscriptEnabled: v.GetBool("ENABLE_TRANSCRIPT_CACHE"),
		TranscriptTTL:     parseDuration(v.GetString("TRANSCRIPT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

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
	v.SetDefault("DB_NAME", "academic_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_CREDIT_LIMIT", 24)
	v.SetDefault("ENROLLMENT_WITHDRAWAL_WINDOW_DAYS", 14)
	v.SetDefault("ENROLLMENT_LOCK_TTL", "5s")

	v.SetDefault("SCHEDULING_CONFLICT_CHECK_TIMEOUT", "2s")

	v.SetDefault("ENABLE_CALENDAR_SYNC", false)
	v.SetDefault("CALENDAR_WEBHOOK_URL", "")
	v.SetDefault("CALENDAR_TIMEOUT", "5s")
	v.SetDefault("CALENDAR_WORKERS", 2)
	v.SetDefault("CALENDAR_MAX_RETRIES", 1)
	v.SetDefault("CALENDAR_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_TRANSCRIPT_CACHE", false)
	v.SetDefault("TRANSCRIPT_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
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

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
