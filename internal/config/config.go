package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Sync tuning. Batch size is capped by the Keepa product endpoint;
	// the rest mirror the backfill defaults.
	SyncBatchSize   int
	SyncWorkers     int
	BackfillDays    int
	MinHistoryRows  int
	RequestTimeoutS int
}

func Load() *Config {
	defaultDSN := "host=localhost user=postgres password=postgres dbname=asin_tracker port=5432 sslmode=disable TimeZone=UTC"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SyncBatchSize:   getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncWorkers:     getEnvInt("SYNC_WORKERS", 3),
		BackfillDays:    getEnvInt("BACKFILL_DAYS", 180),
		MinHistoryRows:  getEnvInt("MIN_HISTORY_ROWS", 30),
		RequestTimeoutS: getEnvInt("REQUEST_TIMEOUT_SECONDS", 30),
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
