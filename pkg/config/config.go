package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Env             string
	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string
	RabbitURL       string
	RabbitExchange  string
	JWTSecret       string

	FriendRequestTTL time.Duration
	CleanupMaxAge    time.Duration
	CleanupInterval  time.Duration
	WSPingInterval   time.Duration
	WSPongWait       time.Duration
	StoreTimeout     time.Duration
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "spotibuds"),
		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		RabbitExchange:  getEnv("RABBITMQ_EXCHANGE", "user.events"),
		JWTSecret:       getEnv("JWT_SECRET", "supersecretjwtkey"),

		FriendRequestTTL: getDays("FRIEND_REQUEST_TTL_DAYS", 30),
		CleanupMaxAge:    getDays("CLEANUP_MAX_AGE_DAYS", 30),
		CleanupInterval:  getDurationEnv("CLEANUP_INTERVAL", 6*time.Hour),
		WSPingInterval:   getDurationEnv("WS_PING_INTERVAL", 30*time.Second),
		WSPongWait:       getDurationEnv("WS_PONG_WAIT", 60*time.Second),
		StoreTimeout:     getDurationEnv("STORE_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDays(key string, defaultDays int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if days, err := strconv.Atoi(value); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	return time.Duration(defaultDays) * 24 * time.Hour
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
