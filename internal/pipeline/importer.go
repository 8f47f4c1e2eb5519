package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/source"
)

// Repository is the store the importer reads duplicates from and inserts into.
type Repository interface {
	dedup.Repository
	Inserter
}

// ImportOptions controls a single import.
type ImportOptions struct {
	// Format names a registered format; empty or "auto" detects it.
	Format string
	Policy dedup.Policy
	// Decider adjudicates ambiguous rows under dedup.PolicyReview.
	Decider        dedup.Decider
	AutoCategorize bool
	// DryRun stops after duplicate analysis without writing anything.
	DryRun bool
}

// ImportReport summarizes one import.
type ImportReport struct {
	File        string     `json:"file,omitempty"`
	Format      string     `json:"format"`
	TotalRows   int        `json:"total_rows"`
	Parsed      int        `json:"parsed"`
	RowErrors   []RowError `json:"row_errors,omitempty"`
	Errors      int        `json:"errors"`
	Categorized int        `json:"categorized,omitempty"`
	// CategorizeFailures counts rows left uncategorized because the categorizer failed.
	CategorizeFailures int               `json:"categorize_failures,omitempty"`
	New                int               `json:"new"`
	Duplicates         int               `json:"duplicates"`
	Ambiguous          int               `json:"ambiguous"`
	Skipped            int               `json:"skipped"`
	Inserted           int               `json:"inserted"`
	InsertedIDs        []string          `json:"inserted_ids,omitempty"`
	Pending            []dedup.Candidate `json:"pending,omitempty"`
	Candidates         []dedup.Candidate `json:"candidates,omitempty"`
	ArchiveURI         string            `json:"archive_uri,omitempty"`
	DryRun             bool              `json:"dry_run,omitempty"`
}

// Importer runs statement files through
// Load → Detect → Parse → Categorize → Analyze → Insert → Archive.
type Importer struct {
	repo        Repository
	resolver    *dedup.Resolver
	loader      Loader
	categorizer categorizer.Categorizer
	archiver    Archiver
}

// NewImporter creates an importer that checks duplicates within toleranceDays.
// It reads local files only until WithLoader is used.
func NewImporter(repo Repository, toleranceDays int) *Importer {
	return &Importer{
		repo:     repo,
		resolver: dedup.NewResolver(repo, toleranceDays),
		loader:   source.NewLoader(nil),
	}
}

// WithLoader sets the loader used by ImportURI.
func (i *Importer) WithLoader(l Loader) *Importer {
	i.loader = l
	return i
}

// WithCategorizer sets the categorizer used when AutoCategorize is requested.
func (i *Importer) WithCategorizer(c categorizer.Categorizer) *Importer {
	i.categorizer = c
	return i
}

// WithArchiver archives every file that produced new rows.
func (i *Importer) WithArchiver(a Archiver) *Importer {
	i.archiver = a
	return i
}

// Resolver returns the duplicate resolver used by the importer.
func (i *Importer) Resolver() *dedup.Resolver {
	return i.resolver
}

func (i *Importer) pipeline() *Pipeline {
	return NewPipeline(
		&LoadStep{loader: i.loader},
		&DetectStep{},
		&ParseStep{},
		&CategorizeStep{categorizer: i.categorizer},
		&AnalyzeStep{resolver: i.resolver},
		&InsertStep{repo: i.repo},
		&ArchiveStep{archiver: i.archiver},
	)
}

// ImportText imports text that is already in memory. filename is used for
// logging and archiving only.
func (i *Importer) ImportText(ctx context.Context, filename, text string, opts ImportOptions) (*ImportReport, error) {
	return i.run(ctx, &ImportState{Filename: filename, Data: []byte(text), Options: opts})
}

// ImportURI imports a local path or gs:// URI.
func (i *Importer) ImportURI(ctx context.Context, uri string, opts ImportOptions) (*ImportReport, error) {
	return i.run(ctx, &ImportState{URI: uri, Filename: source.FilenameFromURI(uri), Options: opts})
}

func (i *Importer) run(ctx context.Context, state *ImportState) (*ImportReport, error) {
	log := logger.FromContext(ctx).With().Str("file", state.Filename).Logger()
	ctx = logger.WithContext(ctx, log)

	if state.Options.Policy == "" {
		state.Options.Policy = dedup.PolicySkipDuplicates
	}

	if err := i.pipeline().Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Import failed")
		return nil, fmt.Errorf("Import: %s: %w", state.Filename, err)
	}

	report := buildReport(state)
	log.Info().
		Str("format", report.Format).
		Int("parsed", report.Parsed).
		Int("errors", report.Errors).
		Int("new", report.New).
		Int("duplicates", report.Duplicates).
		Int("inserted", report.Inserted).
		Int("categorize_failures", report.CategorizeFailures).
		Int("pending", len(report.Pending)).
		Bool("dry_run", report.DryRun).
		Msg("Import complete")
	return report, nil
}

func buildReport(state *ImportState) *ImportReport {
	report := &ImportReport{
		File:               state.Filename,
		Format:             state.Format,
		Categorized:        state.Categorized,
		CategorizeFailures: state.CategorizeFailures,
		InsertedIDs:        state.InsertedIDs,
		Inserted:           len(state.InsertedIDs),
		ArchiveURI:         state.ArchiveURI,
		DryRun:             state.Options.DryRun,
	}
	if p := state.Parsed; p != nil {
		report.TotalRows = p.TotalRows
		report.Parsed = len(p.Transactions)
		report.RowErrors = p.Errors
		report.Errors = len(p.Errors)
	}
	if a := state.Analysis; a != nil {
		report.New = a.New
		report.Duplicates = a.Duplicates()
		report.Ambiguous = a.Ambiguous
		if state.Options.DryRun {
			report.Candidates = a.Candidates
		}
	}
	if s := state.Selection; s != nil {
		report.Skipped = len(s.Skipped)
		report.Pending = s.Pending
	}
	return report
}
