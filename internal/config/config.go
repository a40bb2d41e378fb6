package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all environment-driven settings for the server.
type Config struct {
	Port         string
	MongoURI     string
	DBName       string
	JWTSecret    string
	OpenAIKey    string
	OpenAIModel  string
	AssistantID  string
	StalePending time.Duration
}

// LoadConfig reads configuration from the environment (.env is optional).
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, relying on environment variables")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:       getEnv("DB_NAME", "mentorlink"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", ""),
		AssistantID:  getEnv("ASSISTANT_IDENTITY_ID", "000000000000000000000001"),
		StalePending: getDurationEnv("STALE_PENDING_DAYS", 7) * 24 * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(fallback)
}
