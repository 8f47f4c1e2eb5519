package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// NewJobHandler returns a jobs.JobHandler that imports the file named by
// each ImportFileJob and records the outcome on the job. Errors a retry
// cannot fix (undetectable or unreadable files, bad options) are marked
// permanent.
func NewJobHandler(importer *Importer, defaultPolicy dedup.Policy) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportFileJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("job_id", importJob.JobID).
			Str("source_uri", importJob.SourceURI).
			Msg("Processing import job")

		policy := defaultPolicy
		if importJob.Policy != "" {
			p, err := dedup.ParsePolicy(importJob.Policy)
			if err != nil {
				return jobs.Permanent(err)
			}
			policy = p
		}

		report, err := importer.ImportURI(ctx, importJob.SourceURI, ImportOptions{
			Format:         importJob.Format,
			Policy:         policy,
			AutoCategorize: importJob.AutoCategorize,
		})
		if err != nil {
			if errors.Is(err, ErrFormatNotDetected) || errors.Is(err, ErrUnreadable) || errors.Is(err, formats.ErrUnknownFormat) {
				return jobs.Permanent(err)
			}
			return err
		}

		importJob.Result = &jobs.ImportResult{
			Format:     report.Format,
			Parsed:     report.Parsed,
			Errors:     report.Errors,
			New:        report.New,
			Duplicates: report.Duplicates,
			Pending:    len(report.Pending),
			Inserted:   report.Inserted,
			ArchiveURI: report.ArchiveURI,
		}
		return nil
	}
}
