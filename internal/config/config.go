package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendBolt     = "bolt"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendNone     = "none"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port      string
	AuthToken string

	StorageBackend string
	StoragePath    string
	ResetStorage   bool

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	CatalogURL         string
	CatalogAPIKey      string
	CatalogAPIHost     string
	CatalogTimeoutSecs int
	CatalogType        string
	CatalogGenre       string
	CatalogRows        int
	RefreshOnStart     bool

	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		AuthToken: os.Getenv("AUTH_TOKEN"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendBolt)),
		StoragePath:    getEnv("STORAGE_PATH", "data/catalog.db"),
		ResetStorage:   getEnvBool("RESET_STORAGE", false),

		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 5),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 0),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),

		CatalogURL:         getEnv("CATALOG_URL", "https://imdb236.p.rapidapi.com"),
		CatalogAPIKey:      os.Getenv("CATALOG_API_KEY"),
		CatalogAPIHost:     getEnv("CATALOG_API_HOST", "imdb236.p.rapidapi.com"),
		CatalogTimeoutSecs: getEnvInt("CATALOG_TIMEOUT_SECS", 10),
		CatalogType:        getEnv("CATALOG_TYPE", "movie"),
		CatalogGenre:       getEnv("CATALOG_GENRE", "Drama"),
		CatalogRows:        getEnvInt("CATALOG_ROWS", 25),
		RefreshOnStart:     getEnvBool("REFRESH_ON_START", true),

		ReadTimeoutSecs:  getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs: getEnvInt("SERVER_WRITE_TIMEOUT", 0),
		IdleTimeoutSecs:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),

		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
	}

	switch cfg.StorageBackend {
	case BackendBolt, BackendFile:
		if cfg.StoragePath == "" {
			return Config{}, fmt.Errorf("STORAGE_PATH is required for the %s backend", cfg.StorageBackend)
		}
	case BackendPostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required for the postgres backend")
		}
		if err := validatePool(cfg); err != nil {
			return Config{}, err
		}
	case BackendMemory, BackendNone:
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be one of bolt, file, postgres, memory, none")
	}

	if cfg.CatalogURL == "" {
		return Config{}, fmt.Errorf("CATALOG_URL is required")
	}
	if cfg.CatalogAPIKey == "" {
		return Config{}, fmt.Errorf("CATALOG_API_KEY is required")
	}
	if cfg.CatalogTimeoutSecs < 0 {
		return Config{}, fmt.Errorf("CATALOG_TIMEOUT_SECS must be non-negative")
	}
	if cfg.CatalogRows <= 0 {
		return Config{}, fmt.Errorf("CATALOG_ROWS must be positive")
	}
	if cfg.ReadTimeoutSecs < 0 || cfg.WriteTimeoutSecs < 0 || cfg.IdleTimeoutSecs < 0 {
		return Config{}, fmt.Errorf("SERVER_*_TIMEOUT values must be non-negative")
	}
	if cfg.LogMaxSizeMB <= 0 {
		return Config{}, fmt.Errorf("LOG_MAX_SIZE_MB must be positive")
	}

	return cfg, nil
}

func validatePool(cfg Config) error {
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
