// Package infra builds the configured store and categorizer implementations.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/config"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/infra/memory"
	"github.com/dvloznov/statement-ledger/internal/infra/sqldb"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// OpenStore opens the store selected by cfg.StoreDriver. SQL stores are
// migrated on open; the BigQuery store expects EnsureSchema to have run.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	log := logger.Component(ctx, "store")

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres, config.DriverMySQL:
		s, err := sqldb.Open(cfg.StoreDriver, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("Opened SQL store")
		return s, nil
	case config.DriverBigQuery:
		s, err := infraBQ.NewStore(ctx, infraBQ.Dataset{ProjectID: cfg.GCPProjectID, Name: cfg.BQDataset})
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().
			Str("project", cfg.GCPProjectID).
			Str("dataset", cfg.BQDataset).
			Msg("Opened BigQuery store")
		return s, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown store driver %q", cfg.StoreDriver)
	}
}

// MigrateStore creates the schema for the configured store.
func MigrateStore(ctx context.Context, cfg *config.Config) error {
	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("MigrateStore: %w", err)
	}
	defer s.Close()

	if bq, ok := s.(*infraBQ.Store); ok {
		if err := bq.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("MigrateStore: %w", err)
		}
	}
	return nil
}

// NewCategorizer returns the keyword categorizer built from
// cfg.CategoryRulesPath (or the default rules), followed by Gemini when
// cfg.GeminiEnabled is set.
func NewCategorizer(ctx context.Context, cfg *config.Config) (categorizer.Categorizer, error) {
	var rules []categorizer.Rule
	if cfg.CategoryRulesPath != "" {
		loaded, err := categorizer.LoadRules(cfg.CategoryRulesPath)
		if err != nil {
			return nil, fmt.Errorf("NewCategorizer: %w", err)
		}
		rules = loaded
	}
	keyword := categorizer.NewKeyword(rules)

	if !cfg.GeminiEnabled {
		return keyword, nil
	}

	client, err := categorizer.NewGeminiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewCategorizer: %w", err)
	}
	gemini := categorizer.NewGemini(client.Models, cfg.GeminiModel, keyword.Categories())
	return categorizer.Chain{keyword, gemini}, nil
}
