package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/source"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// Services is the wired set of components the commands share.
type Services struct {
	Store       store.Store
	Ledger      *ledger.Ledger
	Importer    *pipeline.Importer
	Categorizer categorizer.Categorizer

	gcs *source.GCS
}

// OpenServices opens the configured store, loads the category hierarchy and
// builds the importer. When cfg.GCSBucket is set, gs:// sources can be read
// and imported files are archived to that bucket.
func OpenServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc := &Services{Store: st}

	svc.Ledger = ledger.New(st, st)
	if err := svc.Ledger.Load(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("OpenServices: %w", err)
	}

	svc.Categorizer, err = NewCategorizer(ctx, cfg)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("OpenServices: %w", err)
	}

	svc.Importer = pipeline.NewImporter(st, cfg.DedupToleranceDays).WithCategorizer(svc.Categorizer)
	if cfg.GCSBucket != "" {
		svc.gcs, err = source.NewGCS(ctx)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("OpenServices: %w", err)
		}
		svc.Importer.
			WithLoader(source.NewLoader(svc.gcs)).
			WithArchiver(source.NewArchiver(svc.gcs, cfg.GCSBucket))

		log := logger.Component(ctx, "infra")
		log.Info().Str("bucket", cfg.GCSBucket).Msg("Cloud Storage sources and archiving enabled")
	}

	return svc, nil
}

// Close releases the store and the storage client.
func (s *Services) Close() error {
	var errs []error
	if s.gcs != nil {
		errs = append(errs, s.gcs.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	return errors.Join(errs...)
}
