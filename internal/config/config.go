package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	Environment string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	AMQPURL     string
	SwaggerHost string

	// Google OAuth. All three must be set for the Google endpoints to work;
	// when missing the endpoints answer google_oauth_not_configured.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Where the OAuth callback sends the browser when the state carries no
	// redirect target of its own.
	OAuthDefaultRedirect string
}

// Load builds Config from environment with sensible defaults. A .env file in
// the working directory is read first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),
		MySQLDSN:    getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/storefront?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AMQPURL:     os.Getenv("AMQP_URL"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		OAuthDefaultRedirect: getEnv("OAUTH_DEFAULT_REDIRECT", "/"),
	}
}

// IsProduction reports whether session cookies must be SameSite=None and Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GoogleConfigured reports whether the Google OAuth collaborator can be built.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
