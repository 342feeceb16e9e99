package Config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    string
	KafkaTopic      string
	JWTSecret       string
	FirebaseKeyFile string
}

// Load reads .env if present and falls back to process environment variables.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println(".env not found, using environment variables")
	}

	cfg := Config{
		Port:            os.Getenv("PORT"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          os.Getenv("DB_PORT"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      os.Getenv("KAFKA_TOPIC"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		FirebaseKeyFile: os.Getenv("FIREBASE_KEY_FILE"),
	}

	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "database.db"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "secret"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "beacon.events"
	}

	return cfg
}
