package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis
	RedisURL      string
	RedisPoolSize int

	// Server
	Port        string
	FrontendURL string

	// Matchmaking
	QueueStaleSeconds int
	QueueSweepSeconds int
	MinStakeAmount    float64
	AllowedGameTypes  []string

	// Settlement
	WinnerSharePercent int

	// Security
	ServiceTokenSecret string
	OwnerDisplayName   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/stakearena?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 0),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Matchmaking
		QueueStaleSeconds: getEnvInt("QUEUE_STALE_SECONDS", 300),
		QueueSweepSeconds: getEnvInt("QUEUE_SWEEP_SECONDS", 30),
		MinStakeAmount:    getEnvFloat("MIN_STAKE_AMOUNT", 1.0),
		AllowedGameTypes:  []string{"connect_four", "chess", "dice"},

		// Settlement
		WinnerSharePercent: getEnvIntInRange("WINNER_SHARE_PERCENT", 90, 50, 100),

		// Security
		ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", "change-me-in-production"),
		OwnerDisplayName:   getEnv("OWNER_DISPLAY_NAME", "StakeArena Platform"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvIntInRange(key string, defaultValue, min, max int) int {
	v := getEnvInt(key, defaultValue)
	if v < min || v > max {
		log.Printf("[CONFIG] %s=%d out of range [%d, %d], using default %d", key, v, min, max, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
