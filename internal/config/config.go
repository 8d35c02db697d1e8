// Package config loads runtime settings from the environment and opens the
// PostgreSQL and Redis connections the service runs on.
package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds everything read from the environment.
type Config struct {
	Environment string
	HTTPAddr    string
	CORSOrigins []string

	DatabaseURL string
	DebugSQL    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTTTL    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	SMTPInsecure bool

	TelegramToken string

	S3Bucket    string
	AWSRegion   string
	AWSEndpoint string
	ProofURLTTL time.Duration

	NotifyWorkers   int
	NotifyQueueSize int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	cfg := LoadUnchecked()
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return cfg, nil
}

// LoadUnchecked is Load without the checks that only the API server needs.
// The admin CLI uses it.
func LoadUnchecked() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: no .env file found, using environment variables")
	}

	return &Config{
		Environment:     strings.ToLower(get("ENVIRONMENT", "development")),
		HTTPAddr:        get("HTTP_ADDR", ":8080"),
		CORSOrigins:     splitList(get("CORS_ORIGINS", "http://localhost:3000")),
		DatabaseURL:     get("DATABASE_URL", "host=localhost user=sns password=sns dbname=snsdb port=5432 sslmode=disable"),
		DebugSQL:        get("DEBUG_SQL", "") == "true",
		RedisAddr:       get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   get("REDIS_PASSWORD", ""),
		RedisDB:         getInt("REDIS_DB", 0),
		JWTSecret:       get("JWT_SECRET", ""),
		JWTTTL:          time.Duration(getInt("JWT_TTL_HOURS", 72)) * time.Hour,
		SMTPHost:        get("SMTP_HOST", ""),
		SMTPPort:        getInt("SMTP_PORT", 587),
		SMTPUser:        get("SMTP_USER", ""),
		SMTPPass:        get("SMTP_PASS", ""),
		SMTPFrom:        get("SMTP_FROM", ""),
		SMTPInsecure:    get("SMTP_SKIP_TLS_VERIFY", "") == "1",
		TelegramToken:   get("TELEGRAM_BOT_TOKEN", ""),
		S3Bucket:        get("S3_BUCKET", ""),
		AWSRegion:       get("AWS_REGION", "ap-south-1"),
		AWSEndpoint:     get("AWS_ENDPOINT_URL", ""),
		ProofURLTTL:     time.Duration(getInt("PROOF_URL_TTL_SECONDS", 300)) * time.Second,
		NotifyWorkers:   getInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getInt("NOTIFY_QUEUE_SIZE", 256),
	}
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MailConfigured reports whether the SMTP channel can be used.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// OpenDB connects GORM to PostgreSQL. SQL statements are logged in development
// and suppressed in production unless DEBUG_SQL=true.
func OpenDB(cfg *Config) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsProduction() && !cfg.DebugSQL {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel, SlowThreshold: 500 * time.Millisecond},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	return db, nil
}

// OpenRedis connects to Redis and checks the connection.
func OpenRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return rdb, nil
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
