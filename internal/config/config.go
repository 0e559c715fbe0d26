// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"coinledger/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfig loads configuration from the environment, after layering in a
// local .env file when one exists.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // missing .env is fine; real env wins anyway

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	lockTimeout := 5 * time.Second
	if raw := os.Getenv("DB_LOCK_TIMEOUT"); raw != "" {
		lockTimeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_LOCK_TIMEOUT: %w", err)
		}
	}

	return &AppConfig{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DB: db.Config{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "user"),
			Password:    getEnv("DB_PASSWORD", "password"),
			DBName:      getEnv("DB_NAME", "coinledger"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			LockTimeout: lockTimeout,
		},
	}, nil
}
