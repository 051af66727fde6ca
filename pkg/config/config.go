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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Audit     AuditConfig
	Exports   ExportsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the slot search engine.
type SchedulerConfig struct {
	// SlotStep is the candidate cursor granularity.
	SlotStep time.Duration
	// LeadIn delays the first candidate after an attendance starts.
	LeadIn time.Duration
	// HorizonDays caps how many calendar days a single search may scan.
	HorizonDays int
	// RetryAttempts bounds the window-advance loop when a search comes up empty.
	RetryAttempts int
	// RetryAdvance is how far the window moves forward per empty attempt.
	RetryAdvance time.Duration
	// DefaultTimezone is the fallback IANA zone for "is this slot in the past"
	// checks when a request carries no timezone of its own.
	DefaultTimezone string
	// DefaultCalendarID is the organisation-wide calendar used when neither a
	// team nor its lead has one.
	DefaultCalendarID string
	// ZoneClustering enables the same-zone/geo proximity ranking bonus.
	ZoneClustering bool
	// LeadSharing widens conflict checks to every team sharing a lead.
	LeadSharing bool
	// CalendarCacheTTL bounds how long resolved weekly calendars are cached.
	CalendarCacheTTL time.Duration
}

// AuditConfig tunes the asynchronous booking audit trail.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// ExportsConfig gates the dispatch sheet endpoints.
type ExportsConfig struct {
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		SlotStep:          parseDuration(v.GetString("SCHEDULER_SLOT_STEP"), 30*time.Minute),
		LeadIn:            parseDuration(v.GetString("SCHEDULER_LEAD_IN"), 0),
		HorizonDays:       v.GetInt("SCHEDULER_HORIZON_DAYS"),
		RetryAttempts:     v.GetInt("SCHEDULER_RETRY_ATTEMPTS"),
		RetryAdvance:      parseDuration(v.GetString("SCHEDULER_RETRY_ADVANCE"), 2*time.Hour),
		DefaultTimezone:   v.GetString("SCHEDULER_DEFAULT_TIMEZONE"),
		DefaultCalendarID: v.GetString("SCHEDULER_DEFAULT_CALENDAR_ID"),
		ZoneClustering:    v.GetBool("SCHEDULER_ZONE_CLUSTERING"),
		LeadSharing:       v.GetBool("SCHEDULER_LEAD_SHARING"),
		CalendarCacheTTL:  parseDuration(v.GetString("SCHEDULER_CALENDAR_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dispatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "dispatch-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_SLOT_STEP", "30m")
	v.SetDefault("SCHEDULER_LEAD_IN", "0s")
	v.SetDefault("SCHEDULER_HORIZON_DAYS", 30)
	v.SetDefault("SCHEDULER_RETRY_ATTEMPTS", 84)
	v.SetDefault("SCHEDULER_RETRY_ADVANCE", "2h")
	v.SetDefault("SCHEDULER_DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULER_DEFAULT_CALENDAR_ID", "")
	v.SetDefault("SCHEDULER_ZONE_CLUSTERING", false)
	v.SetDefault("SCHEDULER_LEAD_SHARING", true)
	v.SetDefault("SCHEDULER_CALENDAR_CACHE_TTL", "10m")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_BUFFER_SIZE", 64)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_EXPORTS", true)
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
