package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DB struct {
		// Driver is "postgres" or "sqlite"
		Driver   string
		Path     string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Server struct {
		Port        string
		GinMode     string
		Environment string
		LogLevel    string
	}

	Auth struct {
		JWTSecret     string
		SessionCookie string
		SessionTTL    time.Duration
		// Login attempts per minute allowed for a single client address
		LoginRatePerMinute int
		LoginBurst         int
	}

	Visitor struct {
		CookieName string
		MaxAge     time.Duration
		HashSalt   string
	}

	Polls struct {
		DefaultPageSize int
		MaxPageSize     int
		EnforceExpiry   bool
	}

	Archive struct {
		Enabled   bool
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	CORS struct {
		AllowOrigins string
		AllowMethods string
		AllowHeaders string
	}
}

// Load loads configuration from environment variables
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{}

	config.DB.Driver = getEnv("DB_DRIVER", "postgres")
	config.DB.Path = getEnv("DB_PATH", "polls.db")
	config.DB.Host = getEnv("DB_HOST", "localhost")
	config.DB.Port = getEnv("DB_PORT", "5432")
	config.DB.User = getEnv("DB_USER", "polls")
	config.DB.Password = getEnv("DB_PASSWORD", "polls_password")
	config.DB.Name = getEnv("DB_NAME", "polls_db")
	config.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	config.Server.Port = getEnv("PORT", "8080")
	config.Server.GinMode = getEnv("GIN_MODE", "debug")
	config.Server.Environment = getEnv("ENVIRONMENT", "development")
	config.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	config.Auth.JWTSecret = getEnv("JWT_SECRET", "change-me-in-production")
	config.Auth.SessionCookie = getEnv("SESSION_COOKIE", "session")
	config.Auth.SessionTTL = getEnvAsDuration("SESSION_TTL", 7*24*time.Hour)
	config.Auth.LoginRatePerMinute = getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10)
	config.Auth.LoginBurst = getEnvAsInt("LOGIN_BURST", 5)

	config.Visitor.CookieName = getEnv("VISITOR_COOKIE", "visitor_ip")
	config.Visitor.MaxAge = getEnvAsDuration("VISITOR_COOKIE_MAX_AGE", 30*24*time.Hour)
	config.Visitor.HashSalt = getEnv("VISITOR_HASH_SALT", "polls-visitor-salt")

	config.Polls.DefaultPageSize = getEnvAsInt("POLLS_PAGE_SIZE", 10)
	config.Polls.MaxPageSize = getEnvAsInt("POLLS_MAX_PAGE_SIZE", 100)
	config.Polls.EnforceExpiry = getEnvAsBool("ENFORCE_POLL_EXPIRY", false)

	config.Archive.Enabled = getEnvAsBool("ARCHIVE_ENABLED", false)
	config.Archive.Endpoint = getEnv("ARCHIVE_ENDPOINT", "localhost:9000")
	config.Archive.AccessKey = getEnv("ARCHIVE_ACCESS_KEY", "")
	config.Archive.SecretKey = getEnv("ARCHIVE_SECRET_KEY", "")
	config.Archive.Bucket = getEnv("ARCHIVE_BUCKET", "poll-results")
	config.Archive.UseSSL = getEnvAsBool("ARCHIVE_USE_SSL", false)

	config.CORS.AllowOrigins = getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")
	config.CORS.AllowMethods = getEnv("CORS_ALLOW_METHODS", "GET,POST,OPTIONS")
	config.CORS.AllowHeaders = getEnv("CORS_ALLOW_HEADERS", "Origin,Content-Length,Content-Type,Accept")

	return config
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// GetDatabaseURL returns the database connection URL
func (c *Config) GetDatabaseURL() string {
	return "postgres://" + c.DB.User + ":" + c.DB.Password + "@" + c.DB.Host + ":" + c.DB.Port + "/" + c.DB.Name + "?sslmode=" + c.DB.SSLMode
}

// SplitList splits a comma separated config value, dropping empty entries
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings such as "720h"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
