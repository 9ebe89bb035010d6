package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents server-side configuration (API + worker) loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBMaxConns         int
	JWTSecret          string
	RedisURL           string
	StoragePath        string
	StorageBaseURL     string
	GeoIPDBPath        string
	DefaultLocale      string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	StaticAdsLimit     int
	QuotaPerAngle      int
	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	GeneratorPerMinute int
	ImageSize          int
	GeneratorURL       string
	GeneratorAPIKey    string
	GeneratorModel     string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		StaticAdsLimit:     getEnvInt("STATIC_ADS_USAGE_LIMIT", 20),
		QuotaPerAngle:      getEnvInt("STATIC_ADS_QUOTA_PER_ANGLE", 2),
		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		GeneratorPerMinute: getEnvInt("GENERATOR_RATE_PER_MINUTE", 120),
		ImageSize:          getEnvInt("STATIC_ADS_IMAGE_SIZE", 1080),
		GeneratorURL:       strings.TrimSpace(os.Getenv("GENERATOR_URL")),
		GeneratorAPIKey:    strings.TrimSpace(os.Getenv("GENERATOR_API_KEY")),
		GeneratorModel:     os.Getenv("GENERATOR_MODEL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.QuotaPerAngle <= 0 {
		return nil, fmt.Errorf("STATIC_ADS_QUOTA_PER_ANGLE must be positive")
	}

	return cfg, nil
}

// ClientConfig configures the static ads client session used by the CLI.
type ClientConfig struct {
	AppEnv         string
	APIBaseURL     string
	Token          string
	UsageCategory  string
	QuotaPerAngle  int
	PollInterval   time.Duration
	UsageDebounce  time.Duration
	RequestTimeout time.Duration
}

// LoadClientConfig reads the client configuration. The token may be empty here;
// callers can supply it from a flag before validating with Validate.
func LoadClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{
		AppEnv:         getEnv("APP_ENV", "development"),
		APIBaseURL:     strings.TrimRight(getEnv("STATIC_ADS_API_URL", "http://localhost:8080"), "/"),
		Token:          strings.TrimSpace(os.Getenv("STATIC_ADS_TOKEN")),
		UsageCategory:  getEnv("STATIC_ADS_USAGE_CATEGORY", "static_ads"),
		QuotaPerAngle:  getEnvInt("STATIC_ADS_QUOTA_PER_ANGLE", 2),
		PollInterval:   time.Second * time.Duration(getEnvInt("STATIC_ADS_POLL_INTERVAL_SECONDS", 5)),
		UsageDebounce:  time.Millisecond * time.Duration(getEnvInt("STATIC_ADS_USAGE_DEBOUNCE_MS", 1500)),
		RequestTimeout: time.Second * time.Duration(getEnvInt("STATIC_ADS_REQUEST_TIMEOUT_SECONDS", 30)),
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("STATIC_ADS_API_URL is invalid: %w", err)
	}
	if cfg.QuotaPerAngle <= 0 {
		return nil, fmt.Errorf("STATIC_ADS_QUOTA_PER_ANGLE must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("STATIC_ADS_POLL_INTERVAL_SECONDS must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
