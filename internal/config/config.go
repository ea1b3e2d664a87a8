// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// ScaleConfig holds the thresholds of the reported-value scale heuristic.
// SEC rules require 13F values in whole dollars, but some filers report
// thousands; when both thresholds hold for a filing, every value in it is
// multiplied by 1000. This can false-positive for genuinely small funds.
type ScaleConfig struct {
	MaxPositionThreshold float64 // largest single position must be below this
	TotalValueThreshold  float64 // sum of all positions must be below this
	Multiplier           float64
}

// DefaultScaleConfig mirrors the 13F minimum-filing thresholds.
func DefaultScaleConfig() ScaleConfig {
	return ScaleConfig{
		MaxPositionThreshold: 1_000_000,
		TotalValueThreshold:  100_000_000,
		Multiplier:           1000,
	}
}

// BackupConfig holds S3 backup settings. Backups are disabled when the
// bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	RetentionDays   int // 0 keeps all backups
}

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases
	Port         int
	LogLevel     string
	DevMode      bool
	SECUserAgent string // EDGAR requires an identifying User-Agent with contact info
	FinnhubKey   string
	OpenFIGIKey  string // optional, raises OpenFIGI rate limits
	GitHubToken  string // for the alert sink (issue creation)
	GitHubRepo   string // "owner/repo" the alert sink posts issues to
	GeminiKey    string
	GeminiModel  string
	TopN         int // ranked stocks returned by the promising-stocks report
	FundWorkers  int // concurrent fund pipelines
	Scale        ScaleConfig
	Backup       BackupConfig
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FUNDSCOPE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	scale := DefaultScaleConfig()
	scale.MaxPositionThreshold = getEnvAsFloat("SCALE_MAX_POSITION_THRESHOLD", scale.MaxPositionThreshold)
	scale.TotalValueThreshold = getEnvAsFloat("SCALE_TOTAL_VALUE_THRESHOLD", scale.TotalValueThreshold)

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("PORT", 8040),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		SECUserAgent: getEnv("SEC_USER_AGENT", ""),
		FinnhubKey:   getEnv("FINNHUB_API_KEY", ""),
		OpenFIGIKey:  getEnv("OPENFIGI_API_KEY", ""),
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		GitHubRepo:   getEnv("GITHUB_ALERT_REPO", ""),
		GeminiKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		TopN:         getEnvAsInt("RANKING_TOP_N", 30),
		FundWorkers:  getEnvAsInt("FUND_WORKERS", 4),
		Scale:        scale,
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Scale.MaxPositionThreshold <= 0 || c.Scale.TotalValueThreshold <= 0 {
		return fmt.Errorf("scale thresholds must be positive")
	}
	if c.TopN <= 0 {
		return fmt.Errorf("RANKING_TOP_N must be positive")
	}
	if c.FundWorkers <= 0 {
		return fmt.Errorf("FUND_WORKERS must be positive")
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
