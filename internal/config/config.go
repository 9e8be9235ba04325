package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetFloatEnv returns a float environment variable or a default value.
func GetFloatEnv(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable (e.g. "10m") or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

// GetBoolEnv returns a boolean environment variable or a default value.
func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// GetDecimalEnv returns a decimal environment variable or a default value.
func GetDecimalEnv(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(strings.TrimSpace(val)); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type Config struct {
	Env      string
	Port     string
	JWT      JWTConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Captcha  CaptchaConfig
	Orders   OrdersConfig
	Notify   NotifyConfig

	// ProxyHeader names the header carrying the client IP behind a trusted
	// proxy, e.g. X-Forwarded-For. Empty means the socket address is used.
	ProxyHeader string
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver          string
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogSQL          bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// SecurityConfig holds the login abuse protection knobs.
type SecurityConfig struct {
	BanStore           string // "file" or "db"
	BanFile            string
	BanBaseDuration    time.Duration
	BanMaxMultiplier   int
	BanNotifyThreshold int
	BanOffenseTTL      time.Duration // how long redis remembers offense counts

	CaptchaThreshold int // failed attempts before a CAPTCHA is required
	BanThreshold     int // failed attempts before the IP is banned

	// Sweep interval and staleness are separate knobs on purpose:
	// entries may outlive StaleAfter by up to one SweepInterval.
	AttemptSweepInterval time.Duration
	AttemptStaleAfter    time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	AbuseLogFile string
	AbuseLogDB   bool
}

type CaptchaConfig struct {
	Secret        string
	VerifyURL     string
	MinScore      float64
	Timeout       time.Duration
	Disabled      bool
	FailOpen      bool
	TrustedHeader string
	TrustedValue  string
	AppKeyHeader  string
	AppKey        string
	Production    bool
}

type OrdersConfig struct {
	USDCMin        decimal.Decimal
	USDCMax        decimal.Decimal
	USDTMin        decimal.Decimal
	USDTMax        decimal.Decimal
	SEPAMin        decimal.Decimal
	SEPAMax        decimal.Decimal
	USDCRate       decimal.Decimal
	USDTRate       decimal.Decimal
	SEPARate       decimal.Decimal
	CommissionRate decimal.Decimal
}

type NotifyConfig struct {
	WebhookURL  string
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

// Load builds the application configuration from the environment.
func Load() *Config {
	production := IsProduction()
	return &Config{
		Env:  GetEnv("ENV", "development"),
		Port: GetEnv("PORT", "3000"),
		JWT: JWTConfig{
			Secret:   GetEnv("JWT_SECRET", ""),
			TokenTTL: GetDurationEnv("JWT_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Driver:          GetEnv("DB_DRIVER", "postgres"),
			DSN:             postgresDSN(),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			LogSQL:          GetBoolEnv("DB_LOG_SQL", false),
		},
		Redis: RedisConfig{
			Enabled:  GetBoolEnv("REDIS_ENABLED", false),
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			BanStore:             GetEnv("BAN_STORE", "file"),
			BanFile:              GetEnv("BAN_FILE", "data/banned_ips.json"),
			BanBaseDuration:      GetDurationEnv("BAN_BASE_DURATION", time.Hour),
			BanMaxMultiplier:     GetIntEnv("BAN_MAX_MULTIPLIER", 6),
			BanNotifyThreshold:   GetIntEnv("BAN_NOTIFY_THRESHOLD", 2),
			BanOffenseTTL:        GetDurationEnv("BAN_OFFENSE_TTL", 30*24*time.Hour),
			CaptchaThreshold:     GetIntEnv("LOGIN_CAPTCHA_THRESHOLD", 3),
			BanThreshold:         GetIntEnv("LOGIN_BAN_THRESHOLD", 5),
			AttemptSweepInterval: GetDurationEnv("ATTEMPT_SWEEP_INTERVAL", 30*time.Minute),
			AttemptStaleAfter:    GetDurationEnv("ATTEMPT_STALE_AFTER", 10*time.Minute),
			RateLimitWindow:      GetDurationEnv("LOGIN_RATE_LIMIT_WINDOW", 10*time.Minute),
			RateLimitMax:         GetIntEnv("LOGIN_RATE_LIMIT_MAX", 10),
			AbuseLogFile:         GetEnv("ABUSE_LOG_FILE", "logs/abuse.log"),
			AbuseLogDB:           GetBoolEnv("ABUSE_LOG_DB", false),
		},
		Captcha: CaptchaConfig{
			Secret:        GetEnv("CAPTCHA_SECRET", ""),
			VerifyURL:     GetEnv("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			MinScore:      GetFloatEnv("CAPTCHA_MIN_SCORE", 0.5),
			Timeout:       GetDurationEnv("CAPTCHA_TIMEOUT", 5*time.Second),
			Disabled:      GetBoolEnv("CAPTCHA_DISABLED", false),
			FailOpen:      GetBoolEnv("CAPTCHA_FAIL_OPEN", false),
			TrustedHeader: GetEnv("CAPTCHA_TRUSTED_CLIENT_HEADER", "X-Client-Type"),
			TrustedValue:  GetEnv("CAPTCHA_TRUSTED_CLIENT_VALUE", "mobile-app"),
			AppKeyHeader:  GetEnv("CAPTCHA_APP_KEY_HEADER", "X-App-Key"),
			AppKey:        GetEnv("CAPTCHA_APP_KEY", ""),
			Production:    production,
		},
		Orders: OrdersConfig{
			USDCMin:        GetDecimalEnv("USDC_MIN_AMOUNT", decimal.NewFromInt(10)),
			USDCMax:        GetDecimalEnv("USDC_MAX_AMOUNT", decimal.NewFromInt(200000)),
			USDTMin:        GetDecimalEnv("USDT_MIN_AMOUNT", decimal.NewFromInt(10)),
			USDTMax:        GetDecimalEnv("USDT_MAX_AMOUNT", decimal.NewFromInt(200000)),
			SEPAMin:        GetDecimalEnv("SEPA_MIN_AMOUNT", decimal.NewFromInt(10)),
			SEPAMax:        GetDecimalEnv("SEPA_MAX_AMOUNT", decimal.NewFromInt(100000)),
			USDCRate:       GetDecimalEnv("USDC_RATE", decimal.NewFromInt(1)),
			USDTRate:       GetDecimalEnv("USDT_RATE", decimal.NewFromInt(1)),
			SEPARate:       GetDecimalEnv("SEPA_RATE", decimal.NewFromInt(1)),
			CommissionRate: GetDecimalEnv("CONTRACTOR_COMMISSION_RATE", decimal.RequireFromString("0.01")),
		},
		Notify: NotifyConfig{
			WebhookURL:  GetEnv("NOTIFY_WEBHOOK_URL", ""),
			Workers:     GetIntEnv("NOTIFY_WORKERS", 2),
			QueueSize:   GetIntEnv("NOTIFY_QUEUE_SIZE", 256),
			MaxAttempts: GetIntEnv("NOTIFY_MAX_ATTEMPTS", 3),
			Backoff:     GetDurationEnv("NOTIFY_BACKOFF", 2*time.Second),
		},
		ProxyHeader: GetEnv("PROXY_HEADER", ""),
	}
}

func postgresDSN() string {
	if dsn := GetEnv("DB_DSN", ""); dsn != "" {
		return dsn
	}
	return "host=" + GetEnv("DB_HOST", "localhost") +
		" user=" + GetEnv("DB_USER", "postgres") +
		" password=" + GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + GetEnv("DB_NAME", "exchange") +
		" port=" + GetEnv("DB_PORT", "5432") +
		" sslmode=" + GetEnv("DB_SSLMODE", "disable")
}
