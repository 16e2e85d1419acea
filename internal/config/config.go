// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the database and backup staging, always absolute
	Port       int
	LogLevel   string
	DevMode    bool
	NewsAPIKey string // newsapi.org key; news lookups are disabled when empty

	// Cache TTLs. Policy constants, any positive value is valid.
	MarketDataTTL time.Duration // quotes and short-range history
	NewsTTL       time.Duration
	PortfolioTTL  time.Duration // per-user portfolio snapshots
	PredictionTTL time.Duration
	ChartTTL      time.Duration // long-range chart series

	Backup *BackupConfig
}

// BackupConfig holds S3 backup configuration. Backups are skipped
// entirely when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional S3-compatible endpoint (e.g. R2, MinIO)
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Keep            int // Number of remote archives to retain
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COTACOES_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:    absDataDir,
		Port:       getEnvAsInt("PORT", 8000),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DevMode:    getEnvAsBool("DEV_MODE", false),
		NewsAPIKey: getEnv("NEWS_API_KEY", ""),

		MarketDataTTL: getEnvAsSeconds("MARKET_DATA_CACHE_TTL", 300),
		NewsTTL:       getEnvAsSeconds("NEWS_CACHE_TTL", 3600),
		PortfolioTTL:  getEnvAsSeconds("PORTFOLIO_CACHE_TTL", 120),
		PredictionTTL: getEnvAsSeconds("PREDICTION_CACHE_TTL", 600),
		ChartTTL:      getEnvAsSeconds("CHART_CACHE_TTL", 3600),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for name, ttl := range map[string]time.Duration{
		"MARKET_DATA_CACHE_TTL": c.MarketDataTTL,
		"NEWS_CACHE_TTL":        c.NewsTTL,
		"PORTFOLIO_CACHE_TTL":   c.PortfolioTTL,
		"PREDICTION_CACHE_TTL":  c.PredictionTTL,
		"CHART_CACHE_TTL":       c.ChartTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	// NEWS_API_KEY is optional; the news service returns empty
	// results without it.
	return nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Prefix:          getEnv("BACKUP_S3_PREFIX", "cotacoesview"),
		Keep:            getEnvAsInt("BACKUP_KEEP", 14),
	}
}

// Enabled reports whether remote backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
