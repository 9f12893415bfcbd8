package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL    string
	HTTPTimeout   time.Duration
	TokenStore    string
	TokenFile     string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	AutoRefresh   bool
}

func Load() Config {
	// .env next to the binary is optional; missing is fine
	_ = godotenv.Load()

	return Config{
		APIBaseURL:    getenv("API_BASE_URL", "http://127.0.0.1:8080/api"),
		HTTPTimeout:   getenvDuration("HTTP_TIMEOUT", 15*time.Second),
		TokenStore:    getenv("TOKEN_STORE", "file"),
		TokenFile:     getenv("TOKEN_FILE", defaultTokenFile()),
		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		MetricsAddr:   getenv("METRICS_ADDR", ""),
		AutoRefresh:   getenvBool("AUTO_REFRESH", true),
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "digiclassroom", "tokens.json")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
