package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI  string
	RedisAddr string
	Port      string
	JWTSecret string

	// Room limits and timing. Overridable for testing, the defaults match
	// what the clients expect.
	MaxRoomSize    int
	ReconnectGrace time.Duration
	RoomRetention  time.Duration
}

func Load() *Config {
	return &Config{
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		MaxRoomSize:    getEnvInt("MAX_ROOM_SIZE", 8),
		ReconnectGrace: getEnvDuration("RECONNECT_GRACE", 30*time.Second),
		RoomRetention:  getEnvDuration("ROOM_RETENTION", 24*time.Hour),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
