package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// ErrFormatNotDetected is returned when no registered format matches a file.
var ErrFormatNotDetected = errors.New("no registered format matches the file")

// FormatError carries the column diagnostics for a file whose format could
// not be detected or does not match the requested format.
type FormatError struct {
	Validation formats.ValidationReport
}

func (e *FormatError) Error() string {
	if e.Validation.ErrorMessage != "" {
		return e.Validation.ErrorMessage
	}
	return ErrFormatNotDetected.Error()
}

func (e *FormatError) Unwrap() error {
	return ErrFormatNotDetected
}

// Loader reads the raw bytes of a statement file.
type Loader interface {
	Load(ctx context.Context, uri string) ([]byte, error)
}

// Inserter stores an accepted batch atomically.
type Inserter interface {
	InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error)
}

// Archiver keeps a copy of an imported file and returns where it was put.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// ImportState holds the shared state across all pipeline steps.
type ImportState struct {
	URI      string
	Filename string
	Data     []byte
	Options  ImportOptions

	Format      string
	Parsed      *ParseReport
	Categorized int
	// CategorizeFailures counts rows the categorizer returned an error for.
	CategorizeFailures int
	Analysis           *dedup.Analysis
	Selection          *dedup.Selection
	InsertedIDs        []string
	ArchiveURI         string

	// Done stops the pipeline after the current step.
	Done bool
}

// Step 1: LoadStep reads the file named by state.URI unless data was supplied.
type LoadStep struct {
	loader Loader
}

func (s *LoadStep) Execute(ctx context.Context, state *ImportState) error {
	if state.Data != nil {
		return nil
	}
	if s.loader == nil {
		return fmt.Errorf("LoadStep: no loader for %s", state.URI)
	}
	data, err := s.loader.Load(ctx, state.URI)
	if err != nil {
		return fmt.Errorf("LoadStep: %w", err)
	}
	state.Data = data
	return nil
}

// Step 2: DetectStep resolves the requested format or detects one.
type DetectStep struct{}

func (s *DetectStep) Execute(ctx context.Context, state *ImportState) error {
	text := string(state.Data)
	requested := strings.TrimSpace(state.Options.Format)

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("DetectStep: %s is empty: %w", state.Filename, ErrUnreadable)
	}

	if requested != "" && !strings.EqualFold(requested, formats.AutoDetect) {
		spec, ok := formats.Lookup(requested)
		if !ok {
			return fmt.Errorf("DetectStep: %w: %q", formats.ErrUnknownFormat, requested)
		}
		state.Format = spec.Name
		return nil
	}

	name, ok := formats.Detect(text)
	if !ok {
		return fmt.Errorf("DetectStep: %w", &FormatError{Validation: formats.Validate(text, formats.AutoDetect)})
	}
	state.Format = name

	log := logger.FromContext(ctx)
	log.Info().Str("format", name).Str("file", state.Filename).Msg("Detected statement format")
	return nil
}

// Step 3: ParseStep normalizes every row with the resolved format.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *ImportState) error {
	report, err := ParseWithReport(ctx, string(state.Data), state.Format)
	if err != nil {
		return fmt.Errorf("ParseStep: %w", err)
	}
	if len(report.MissingColumns) > 0 {
		return fmt.Errorf("ParseStep: %w", &FormatError{Validation: formats.Validate(string(state.Data), state.Format)})
	}
	state.Parsed = report
	return nil
}

// Step 4: CategorizeStep fills placeholder categories when auto-categorization
// is requested and a categorizer is configured. A row the categorizer fails on
// keeps its category.
type CategorizeStep struct {
	categorizer categorizer.Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *ImportState) error {
	if !state.Options.AutoCategorize || s.categorizer == nil {
		return nil
	}
	log := logger.FromContext(ctx)
	for _, t := range state.Parsed.Transactions {
		if !categorizer.NeedsCategory(t.Category) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("CategorizeStep: %w", err)
		}
		category, ok, err := s.categorizer.Categorize(ctx, t.Description)
		if err != nil {
			log.Warn().Err(err).Str("description", t.Description).Msg("Categorizer failed, keeping category")
			state.CategorizeFailures++
			continue
		}
		if ok {
			t.Category = category
			state.Categorized++
		}
	}
	return nil
}

// Step 5: AnalyzeStep classifies the batch against the store and applies the
// import policy.
type AnalyzeStep struct {
	resolver *dedup.Resolver
}

func (s *AnalyzeStep) Execute(ctx context.Context, state *ImportState) error {
	analysis, err := s.resolver.Analyze(ctx, state.Parsed.Transactions)
	if err != nil {
		return fmt.Errorf("AnalyzeStep: %w", err)
	}
	state.Analysis = analysis

	selection, err := dedup.Select(ctx, analysis, state.Options.Policy, state.Options.Decider)
	if err != nil {
		return fmt.Errorf("AnalyzeStep: %w", err)
	}
	state.Selection = selection

	if state.Options.DryRun {
		state.Done = true
	}
	return nil
}

// Step 6: InsertStep stores the accepted rows in one batch.
type InsertStep struct {
	repo Inserter
}

func (s *InsertStep) Execute(ctx context.Context, state *ImportState) error {
	if len(state.Selection.Accepted) == 0 {
		state.Done = true
		return nil
	}
	ids, err := s.repo.InsertBatch(ctx, state.Selection.Accepted)
	if err != nil {
		return fmt.Errorf("InsertStep: %w", err)
	}
	state.InsertedIDs = ids
	return nil
}

// Step 7: ArchiveStep keeps a copy of a file that produced new rows. Archive
// failures are logged; the rows are already stored.
type ArchiveStep struct {
	archiver Archiver
}

func (s *ArchiveStep) Execute(ctx context.Context, state *ImportState) error {
	if s.archiver == nil || len(state.InsertedIDs) == 0 {
		return nil
	}
	uri, err := s.archiver.Archive(ctx, state.Filename, state.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("file", state.Filename).Msg("Failed to archive statement file")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}
