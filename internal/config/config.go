package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTable    string

	APNSPlatformArn string
	FCMPlatformArn  string

	NotificationQueueURL string
	SearchQueueURL       string

	RedisURL          string // empty selects the in-process endpoint cache
	EndpointCacheTTL  time.Duration
	EndpointCacheSize int

	SearchPrecision  int
	SearchMaxRetries int
	FanOutLimit      int

	JWTPublicKeyPath  string
	JWTPrivateKeyPath string
	JWTExpiry         time.Duration
	AllowedOrigins    []string // CORS allowed origins
}

// Production reports whether the service runs with production defaults.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTable:    getEnv("DYNAMO_TABLE", "blood-connect"),

		APNSPlatformArn: getEnv("SNS_APNS_PLATFORM_ARN", ""),
		FCMPlatformArn:  getEnv("SNS_FCM_PLATFORM_ARN", ""),

		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		SearchQueueURL:       getEnv("DONOR_SEARCH_QUEUE_URL", ""),

		RedisURL:          getEnv("REDIS_URL", ""),
		EndpointCacheTTL:  getEnvDuration("ENDPOINT_CACHE_TTL", 30*time.Minute),
		EndpointCacheSize: getEnvInt("ENDPOINT_CACHE_MAX_ENTRIES", 10000),

		SearchPrecision:  getEnvInt("DONOR_SEARCH_GEOHASH_PRECISION", 7),
		SearchMaxRetries: getEnvInt("DONOR_SEARCH_MAX_RETRIES", 5),
		FanOutLimit:      getEnvInt("NOTIFICATION_FANOUT_LIMIT", 10),

		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "2h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
