package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	FanoutModeLocal = "local"
	FanoutModeRedis = "redis"
)

type Config struct {
	AppPort string
	AppMode string

	StoreDriver string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	JWTSecret     string
	InternalToken string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	FanoutMode string

	NATSURL         string
	NATSTeamSubject string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PathStyle bool

	MessageRateLimit    int
	HistoryDefaultLimit int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:             getEnv("APP_PORT", "8080"),
		AppMode:             getEnv("APP_MODE", "debug"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "workforce_chat"),
		DBPort:              getEnv("DB_PORT", "5432"),
		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		InternalToken:       getEnv("INTERNAL_TOKEN", ""),
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		FanoutMode:          strings.ToLower(getEnv("FANOUT_MODE", FanoutModeLocal)),
		NATSURL:             getEnv("NATS_URL", ""),
		NATSTeamSubject:     getEnv("NATS_TEAM_SUBJECT", "teams.events"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:         getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:         getEnv("S3_SECRET_KEY", ""),
		S3Bucket:            getEnv("S3_BUCKET", "chat-archive"),
		S3PathStyle:         getEnvAsBool("S3_PATH_STYLE", true),
		MessageRateLimit:    getEnvAsInt("MESSAGE_RATE_LIMIT", 30),
		HistoryDefaultLimit: getEnvAsInt("HISTORY_DEFAULT_LIMIT", 100),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
