package config

import (
	"errors"
	"io/fs"
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
	ServiceName string
	Env         string
	Port        int
	APIPrefix   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Campus        CampusConfig
	Bookings      BookingConfig
	AICTE         AICTEConfig
	Certificates  CertificateConfig
	Notifications NotificationConfig
	Maintenance   MaintenanceConfig
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
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CampusConfig pins the wall clock used by date/time comparisons.
type CampusConfig struct {
	TimeZone string
}

// Location resolves the configured campus time zone, falling back to UTC.
func (c CampusConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BookingConfig tunes hall booking validation.
type BookingConfig struct {
	MinRejectionReason int
}

// AICTEConfig holds activity-point thresholds and batch windows.
type AICTEConfig struct {
	RegularRequiredPoints int
	LateralRequiredPoints int
	AutoApproveAfter      time.Duration
}

// CertificateConfig controls certificate storage & download links.
type CertificateConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	IssuerName      string
	PublicBaseURL   string
}

// NotificationConfig configures asynchronous notification delivery.
type NotificationConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	AMQPURL           string
	AMQPQueue         string
}

// MaintenanceConfig governs batch job locking.
type MaintenanceConfig struct {
	LockTTL time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.ServiceName = v.GetString("SERVICE_NAME")
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
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Campus = CampusConfig{TimeZone: v.GetString("CAMPUS_TIMEZONE")}

	cfg.Bookings = BookingConfig{
		MinRejectionReason: v.GetInt("BOOKING_MIN_REJECTION_REASON"),
	}

	cfg.AICTE = AICTEConfig{
		RegularRequiredPoints: v.GetInt("AICTE_REGULAR_REQUIRED_POINTS"),
		LateralRequiredPoints: v.GetInt("AICTE_LATERAL_REQUIRED_POINTS"),
		AutoApproveAfter:      parseDuration(v.GetString("AICTE_AUTO_APPROVE_AFTER"), 7*24*time.Hour),
	}

	cfg.Certificates = CertificateConfig{
		StorageDir:      v.GetString("CERTIFICATES_STORAGE_DIR"),
		SignedURLSecret: v.GetString("CERTIFICATES_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("CERTIFICATES_SIGNED_URL_TTL"), 30*time.Minute),
		IssuerName:      v.GetString("CERTIFICATES_ISSUER_NAME"),
		PublicBaseURL:   v.GetString("PUBLIC_BASE_URL"),
	}

	cfg.Notifications = NotificationConfig{
		WorkerConcurrency: v.GetInt("NOTIFICATIONS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATIONS_WORKER_RETRIES"),
		AMQPURL:           v.GetString("AMQP_URL"),
		AMQPQueue:         v.GetString("AMQP_NOTIFICATION_QUEUE"),
	}

	cfg.Maintenance = MaintenanceConfig{
		LockTTL: parseDuration(v.GetString("MAINTENANCE_LOCK_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "certifytrack-api")
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "certifytrack")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CAMPUS_TIMEZONE", "Asia/Kolkata")

	v.SetDefault("BOOKING_MIN_REJECTION_REASON", 5)

	v.SetDefault("AICTE_REGULAR_REQUIRED_POINTS", 100)
	v.SetDefault("AICTE_LATERAL_REQUIRED_POINTS", 75)
	v.SetDefault("AICTE_AUTO_APPROVE_AFTER", "168h")

	v.SetDefault("CERTIFICATES_STORAGE_DIR", "./certificates")
	v.SetDefault("CERTIFICATES_SIGNED_URL_SECRET", "dev_certificates_secret")
	v.SetDefault("CERTIFICATES_SIGNED_URL_TTL", "30m")
	v.SetDefault("CERTIFICATES_ISSUER_NAME", "CertifyTrack")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("NOTIFICATIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATIONS_WORKER_RETRIES", 3)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_NOTIFICATION_QUEUE", "notifications")

	v.SetDefault("MAINTENANCE_LOCK_TTL", "10m")
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
