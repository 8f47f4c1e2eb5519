// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverBigQuery = "bigquery"
)

type Config struct {
	StoreDriver string
	DatabaseDSN string
	LogLevel    string

	GCPProjectID string
	BQDataset    string
	GCSBucket    string

	GeminiModel       string
	GeminiEnabled     bool
	CategoryRulesPath string

	NotionToken string
	NotionDBID  string

	DedupToleranceDays int
	ImportPolicy       dedup.Policy
	HTTPPort           string
	// APIToken, when set, is required as a bearer token on /api requests.
	APIToken string
}

// Load reads .env (when present) into the process environment without
// overriding variables that are already set, then builds the Config.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and validating values.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		StoreDriver:       strings.ToLower(get("STORE_DRIVER", DriverSQLite)),
		DatabaseDSN:       get("DATABASE_DSN", "expenses.db"),
		LogLevel:          get("LOG_LEVEL", "info"),
		GCPProjectID:      get("GCP_PROJECT_ID", ""),
		BQDataset:         get("BQ_DATASET", "finance"),
		GCSBucket:         get("GCS_BUCKET", ""),
		GeminiModel:       get("GEMINI_MODEL", "gemini-2.5-flash"),
		CategoryRulesPath: get("CATEGORY_RULES_PATH", ""),
		NotionToken:       get("NOTION_TOKEN", ""),
		NotionDBID:        get("NOTION_DB_ID", ""),
		HTTPPort:          get("HTTP_PORT", "8080"),
		APIToken:          get("API_TOKEN", ""),
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMySQL, DriverBigQuery:
	default:
		return nil, fmt.Errorf("FromEnv: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == DriverBigQuery && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("FromEnv: GCP_PROJECT_ID is required for the bigquery store")
	}

	enabled, err := strconv.ParseBool(get("GEMINI_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: GEMINI_ENABLED: %w", err)
	}
	cfg.GeminiEnabled = enabled

	tolerance, err := strconv.Atoi(get("DEDUP_TOLERANCE_DAYS", strconv.Itoa(dedup.DefaultToleranceDays)))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: DEDUP_TOLERANCE_DAYS: %w", err)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("FromEnv: DEDUP_TOLERANCE_DAYS must not be negative, got %d", tolerance)
	}
	cfg.DedupToleranceDays = tolerance

	policy, err := dedup.ParsePolicy(get("IMPORT_POLICY", ""))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: IMPORT_POLICY: %w", err)
	}
	cfg.ImportPolicy = policy

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return nil, fmt.Errorf("FromEnv: HTTP_PORT: %w", err)
	}

	return cfg, nil
}

// NotionConfigured reports whether both Notion settings are present.
func (c *Config) NotionConfigured() bool {
	return c.NotionToken != "" && c.NotionDBID != ""
}
