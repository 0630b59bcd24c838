package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// MailerSend configuration
	MailerSendAPIKey string
	MailFromName     string
	MailFromEmail    string

	// Scanning configuration
	ScanCooldown    time.Duration
	CaptureInterval time.Duration
	NotifyCooldown  time.Duration
	SessionTTL      time.Duration
	VenueTimezone   string

	// Station auth
	StationPasscodeHash string

	// Rate limiting
	ScanRateLimit  int
	ScanRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// MailerSend
		MailerSendAPIKey: getEnv("MAILERSEND_API_KEY", ""),
		MailFromName:     getEnv("MAIL_FROM_NAME", "Venue Bookings"),
		MailFromEmail:    getEnv("MAIL_FROM_EMAIL", ""),

		// Scanning
		ScanCooldown:    getEnvAsDuration("SCAN_COOLDOWN", "30s"),
		CaptureInterval: getEnvAsDuration("CAPTURE_INTERVAL", "100ms"),
		NotifyCooldown:  getEnvAsDuration("NOTIFY_COOLDOWN", "5m"),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", "12h"),
		VenueTimezone:   getEnv("VENUE_TIMEZONE", ""),

		// Station auth
		StationPasscodeHash: getEnv("STATION_PASSCODE_HASH", ""),

		// Rate limiting
		ScanRateLimit:  getEnvAsInt("SCAN_RATE_LIMIT", 60),
		ScanRateWindow: getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
