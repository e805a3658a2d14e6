package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	DataPath        string
	CatalogPath     string
	CatalogStore    string // file | engine
	StorageBackend  string // badger | memory | postgres
	PostgresDSN     string
	ExportDir       string
	LogLevel        string
	LogFile         string
	SchemaCacheSize int
	GCInterval      time.Duration
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "65431"),
		DataPath:        getEnv("DATA_PATH", "./store"),
		CatalogPath:     getEnv("CATALOG_PATH", "./Database.json"),
		CatalogStore:    getEnv("CATALOG_STORE", "file"),
		StorageBackend:  getEnv("STORAGE_BACKEND", "badger"),
		PostgresDSN:     getEnv("POSTGRES_DSN", "postgres://localhost:5432/minidbms"),
		ExportDir:       getEnv("EXPORT_DIR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		LogFile:         getEnv("LOG_FILE", ""),
		SchemaCacheSize: getIntEnv("SCHEMA_CACHE_SIZE", 256),
		GCInterval:      getDurationEnv("GC_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
