package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (rate limit storage + notification sink). Empty means single-instance mode.
	RedisURL            string
	NotificationChannel string

	// JWT (tokens are issued by the auth service, only verified here)
	JWTSecret string

	// Classifier oracle
	ClassifierURL     string
	ClassifierToken   string
	ClassifierTimeout time.Duration

	// Background tasks
	RescanWorkers   int
	RescanQueueSize int
	TaskTimeout     time.Duration

	// Moderation policy defaults (overridable per app)
	Policy Policy

	SLASweepInterval time.Duration
	DeletionGrace    time.Duration
	LogRetentionDays int

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port               string
	CORSOrigins        string
	RateLimitPerMinute int

	// App registry
	AppsConfigPath string
}

// Policy holds the tunable moderation thresholds.
type Policy struct {
	RescanThreshold   float64
	PriorityThreshold float64
	ReviewSLA         time.Duration
	StrikeCeiling     int
}

// DefaultPolicy mirrors the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		RescanThreshold:   3.0,
		PriorityThreshold: 10.0,
		ReviewSLA:         48 * time.Hour,
		StrikeCeiling:     10,
	}
}

func Load() *Config {
	defaults := DefaultPolicy()
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "trust_engine"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL:            getEnv("REDIS_URL", ""),
		NotificationChannel: getEnv("NOTIFICATION_CHANNEL", "moderation:notifications"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierToken:   getEnv("CLASSIFIER_TOKEN", ""),
		ClassifierTimeout: parseDuration(getEnv("CLASSIFIER_TIMEOUT", "5s"), 5*time.Second),

		RescanWorkers:   parseInt(getEnv("RESCAN_WORKERS", "4"), 4),
		RescanQueueSize: parseInt(getEnv("RESCAN_QUEUE_SIZE", "256"), 256),
		TaskTimeout:     parseDuration(getEnv("TASK_TIMEOUT", "30s"), 30*time.Second),

		Policy: Policy{
			RescanThreshold:   parseFloat(getEnv("RESCAN_THRESHOLD", "3.0"), defaults.RescanThreshold),
			PriorityThreshold: parseFloat(getEnv("PRIORITY_THRESHOLD", "10.0"), defaults.PriorityThreshold),
			ReviewSLA:         parseDuration(getEnv("REVIEW_SLA", "48h"), defaults.ReviewSLA),
			StrikeCeiling:     parseInt(getEnv("STRIKE_CEILING", "10"), defaults.StrikeCeiling),
		},

		SLASweepInterval: parseDuration(getEnv("SLA_SWEEP_INTERVAL", "5m"), 5*time.Minute),
		DeletionGrace:    parseDuration(getEnv("DELETION_GRACE", "720h"), 720*time.Hour),
		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:               getEnv("PORT", "8080"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		RateLimitPerMinute: parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "60"), 60),

		AppsConfigPath: getEnv("APPS_CONFIG_PATH", "apps.json"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
