package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreBackend string
	StoreCSVPath string
	SQLitePath   string
	BadgerPath   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	InputDir     string
	OutputDir    string
	TaxonomyFile string

	TopUpN           int
	TopDownN         int
	IndexConcurrency int
	LockTimeoutMs    int

	HTTPAddr string
	LogMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "csv")),
		StoreCSVPath: getEnv("STORE_CSV_PATH", "./data/historico_compacto.csv"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/prices.db"),
		BadgerPath:   getEnv("BADGER_PATH", "./data/badger"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "precios"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "precios123"),
		PostgresDB:       getEnv("POSTGRES_DB", "prices_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		InputDir:     getEnv("INPUT_DIR", "./outputs"),
		OutputDir:    getEnv("OUTPUT_DIR", "./data"),
		TaxonomyFile: getEnv("TAXONOMY_FILE", ""),

		TopUpN:           getEnvInt("TOP_UP_N", 20),
		TopDownN:         getEnvInt("TOP_DOWN_N", 10),
		IndexConcurrency: getEnvInt("INDEX_CONCURRENCY", 4),
		LockTimeoutMs:    getEnvInt("LOCK_TIMEOUT_MS", 10000),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogMode:  getEnv("LOG_MODE", "dev"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// LockTimeout is the longest a writer waits for the store lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
