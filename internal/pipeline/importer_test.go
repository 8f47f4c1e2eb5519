package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/infra/memory"
)

const chaseCSV = "Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n" +
	"01/15/2024,01/16/2024,STARBUCKS STORE #12345,Food & Drink,Sale,-4.75,\n" +
	"01/17/2024,01/18/2024,PAYROLL,Income,Payment,1500.00,January\n" +
	"01/20/2024,01/21/2024,SHELL OIL,Gas,Sale,-40.10,\n"

const chaseFollowUpCSV = "Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n" +
	"01/15/2024,01/17/2024,starbucks store #12345,Food & Drink,Sale,-4.75,\n" +
	"01/25/2024,01/26/2024,NEW ROW,Shopping,Sale,-9.99,\n"

type mockLoader struct {
	LoadFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockLoader) Load(ctx context.Context, uri string) ([]byte, error) {
	return m.LoadFunc(ctx, uri)
}

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, filename string, data []byte) (string, error)
}

func (m *mockArchiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	return m.ArchiveFunc(ctx, filename, data)
}

type failingInsertRepo struct {
	*memory.Store
}

func (f failingInsertRepo) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestImporter_ImportAndReimport(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	s := memory.New()
	imp := NewImporter(s, dedup.DefaultToleranceDays)

	first, err := imp.ImportText(ctx, "jan.csv", chaseCSV, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if first.Format != "chase" || first.Parsed != 3 || first.New != 3 || first.Inserted != 3 {
		t.Errorf("first import = %+v", first)
	}
	if len(first.InsertedIDs) != 3 {
		t.Errorf("InsertedIDs = %v", first.InsertedIDs)
	}

	second, err := imp.ImportText(ctx, "jan.csv", chaseCSV, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if second.New != 0 || second.Duplicates != 3 || second.Inserted != 0 || second.Skipped != 3 {
		t.Errorf("second import = %+v", second)
	}
	if n, _ := s.Count(ctx); n != 3 {
		t.Errorf("store holds %d rows, want 3", n)
	}
}

func TestImporter_Policies(t *testing.T) {
	tests := []struct {
		name         string
		opts         ImportOptions
		wantInserted int
		wantPending  int
	}{
		{name: "skip duplicates", opts: ImportOptions{}, wantInserted: 1},
		{name: "force all", opts: ImportOptions{Policy: dedup.PolicyForceAll}, wantInserted: 2},
		{name: "review without decider", opts: ImportOptions{Policy: dedup.PolicyReview}, wantInserted: 1, wantPending: 1},
		{
			name: "review accepting",
			opts: ImportOptions{
				Policy:  dedup.PolicyReview,
				Decider: func(ctx context.Context, c dedup.Candidate) (bool, error) { return true, nil },
			},
			wantInserted: 2,
		},
		{
			name: "review rejecting",
			opts: ImportOptions{
				Policy:  dedup.PolicyReview,
				Decider: func(ctx context.Context, c dedup.Candidate) (bool, error) { return false, nil },
			},
			wantInserted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(&bytes.Buffer{})
			s := memory.New()
			imp := NewImporter(s, dedup.DefaultToleranceDays)
			if _, err := imp.ImportText(ctx, "jan.csv", chaseCSV, ImportOptions{}); err != nil {
				t.Fatal(err)
			}

			report, err := imp.ImportText(ctx, "follow-up.csv", chaseFollowUpCSV, tt.opts)
			if err != nil {
				t.Fatalf("ImportText() error: %v", err)
			}
			if report.Duplicates != 1 || report.New != 1 {
				t.Errorf("classification: duplicates=%d new=%d", report.Duplicates, report.New)
			}
			if report.Inserted != tt.wantInserted {
				t.Errorf("Inserted = %d, want %d", report.Inserted, tt.wantInserted)
			}
			if len(report.Pending) != tt.wantPending {
				t.Errorf("Pending = %d, want %d", len(report.Pending), tt.wantPending)
			}
		})
	}
}

func TestImporter_DryRun(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	s := memory.New()
	imp := NewImporter(s, dedup.DefaultToleranceDays)

	report, err := imp.ImportText(ctx, "jan.csv", chaseCSV, ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if !report.DryRun || report.Inserted != 0 || report.New != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Candidates) != 3 {
		t.Errorf("Candidates = %d, want 3", len(report.Candidates))
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("dry run stored %d rows", n)
	}
}

func TestImporter_AutoCategorize(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	s := memory.New()
	imp := NewImporter(s, 0).WithCategorizer(categorizer.NewKeyword(nil))

	input := "Date,Description,Amount\n" +
		"01/05/2024,UBER TRIP,-12.00\n" +
		"01/06/2024,MYSTERY VENDOR,-3.00\n"

	report, err := imp.ImportText(ctx, "generic.csv", input, ImportOptions{AutoCategorize: true})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if report.Format != "generic" || report.Categorized != 1 || report.Inserted != 2 {
		t.Errorf("report = %+v", report)
	}

	transport, _ := s.ByCategory(ctx, "Transportation")
	if len(transport) != 1 {
		t.Errorf("Transportation rows = %d, want 1", len(transport))
	}
	uncategorized, _ := s.ByCategory(ctx, domain.UncategorizedCategory)
	if len(uncategorized) != 1 {
		t.Errorf("Uncategorized rows = %d, want 1", len(uncategorized))
	}
}

type mockCategorizer struct {
	CategorizeFunc func(ctx context.Context, description string) (string, bool, error)
}

func (m *mockCategorizer) Categorize(ctx context.Context, description string) (string, bool, error) {
	return m.CategorizeFunc(ctx, description)
}

func TestImporter_CategorizerFailureKeepsRow(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	s := memory.New()
	failing := &mockCategorizer{CategorizeFunc: func(ctx context.Context, description string) (string, bool, error) {
		if description == "MYSTERY" {
			return "", false, errors.New("model returned prose, not JSON")
		}
		return "Gas", true, nil
	}}
	imp := NewImporter(s, 0).WithCategorizer(failing)

	input := "Date,Description,Amount\n" +
		"01/05/2024,SHELL OIL,-40.00\n" +
		"01/06/2024,MYSTERY,-3.00\n"

	report, err := imp.ImportText(ctx, "generic.csv", input, ImportOptions{AutoCategorize: true})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if report.Inserted != 2 || report.Categorized != 1 || report.CategorizeFailures != 1 {
		t.Errorf("report = %+v", report)
	}
	uncategorized, _ := s.ByCategory(ctx, domain.UncategorizedCategory)
	if len(uncategorized) != 1 || uncategorized[0].Description != "MYSTERY" {
		t.Errorf("Uncategorized rows = %v", uncategorized)
	}
}

func TestImporter_CategorizeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(&bytes.Buffer{}))
	s := memory.New()
	cancelling := &mockCategorizer{CategorizeFunc: func(ctx context.Context, description string) (string, bool, error) {
		cancel()
		return "", false, ctx.Err()
	}}
	imp := NewImporter(s, 0).WithCategorizer(cancelling)

	input := "Date,Description,Amount\n" +
		"01/05/2024,A,-1.00\n" +
		"01/06/2024,B,-2.00\n"

	if _, err := imp.ImportText(ctx, "generic.csv", input, ImportOptions{AutoCategorize: true}); !errors.Is(err, context.Canceled) {
		t.Errorf("ImportText() error = %v, want context.Canceled", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("stored %d rows after cancel", n)
	}
}

func TestImporter_RowErrorsAreReported(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	imp := NewImporter(memory.New(), dedup.DefaultToleranceDays)

	input := "Date,Description,Amount\n" +
		"01/05/2024,COFFEE,-3.00\n" +
		"01/06/2024,BROKEN,abc\n" +
		"01/07/2024,LUNCH,-9.00\n"

	report, err := imp.ImportText(ctx, "generic.csv", input, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if report.TotalRows != 3 || report.Parsed != 2 || report.Errors != 1 || report.Inserted != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.RowErrors) != 1 || report.RowErrors[0].Row != 2 {
		t.Errorf("RowErrors = %+v", report.RowErrors)
	}
}

func TestImporter_Failures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		opts    ImportOptions
		wantErr error
	}{
		{name: "empty file", text: "  \n", wantErr: ErrUnreadable},
		{name: "not detected", text: "Foo,Bar\n1,2\n", wantErr: ErrFormatNotDetected},
		{name: "unknown format", text: chaseCSV, opts: ImportOptions{Format: "barclays"}, wantErr: formats.ErrUnknownFormat},
		{name: "header does not match format", text: "Foo,Bar\n1,2\n", opts: ImportOptions{Format: "chase"}, wantErr: ErrFormatNotDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := NewImporter(memory.New(), 1)
			_, err := imp.ImportText(testContext(&bytes.Buffer{}), "x.csv", tt.text, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ImportText() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImporter_FormatErrorCarriesColumns(t *testing.T) {
	imp := NewImporter(memory.New(), 1)
	_, err := imp.ImportText(testContext(&bytes.Buffer{}), "x.csv", "Foo,Bar\n1,2\n", ImportOptions{})

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FormatError", err)
	}
	if len(fe.Validation.FoundColumns) != 2 {
		t.Errorf("FoundColumns = %v", fe.Validation.FoundColumns)
	}
}

func TestImporter_InsertFailure(t *testing.T) {
	imp := NewImporter(failingInsertRepo{memory.New()}, 1)
	if _, err := imp.ImportText(testContext(&bytes.Buffer{}), "jan.csv", chaseCSV, ImportOptions{}); err == nil {
		t.Fatal("ImportText() expected insert error")
	}
}

func TestImporter_ImportURI(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	var archived string
	loader := &mockLoader{
		LoadFunc: func(ctx context.Context, uri string) ([]byte, error) {
			if uri != "gs://statements/2024/jan.csv" {
				t.Errorf("Load(%q)", uri)
			}
			return []byte(chaseCSV), nil
		},
	}
	archiver := &mockArchiver{
		ArchiveFunc: func(ctx context.Context, filename string, data []byte) (string, error) {
			archived = filename
			return "gs://archive/imports/" + filename, nil
		},
	}

	imp := NewImporter(memory.New(), 1).WithLoader(loader).WithArchiver(archiver)
	report, err := imp.ImportURI(ctx, "gs://statements/2024/jan.csv", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportURI() error: %v", err)
	}
	if archived != "jan.csv" || report.ArchiveURI != "gs://archive/imports/jan.csv" {
		t.Errorf("archived %q, ArchiveURI %q", archived, report.ArchiveURI)
	}

	// nothing new, so nothing is archived
	archived = ""
	again, err := imp.ImportURI(ctx, "gs://statements/2024/jan.csv", ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if archived != "" || again.ArchiveURI != "" {
		t.Errorf("duplicate import was archived as %q", again.ArchiveURI)
	}
}

func TestImporter_ArchiveFailureIsNotFatal(t *testing.T) {
	archiver := &mockArchiver{
		ArchiveFunc: func(ctx context.Context, filename string, data []byte) (string, error) {
			return "", errors.New("bucket missing")
		},
	}
	imp := NewImporter(memory.New(), 1).WithArchiver(archiver)

	report, err := imp.ImportText(testContext(&bytes.Buffer{}), "jan.csv", chaseCSV, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportText() error: %v", err)
	}
	if report.Inserted != 3 || report.ArchiveURI != "" {
		t.Errorf("report = %+v", report)
	}
}

func TestPipeline_StopsOnError(t *testing.T) {
	var ran []int
	step := func(n int, err error) PipelineStep {
		return StepFunc(func(ctx context.Context, state *ImportState) error {
			ran = append(ran, n)
			return err
		})
	}

	p := NewPipeline(step(1, nil), step(2, errors.New("boom")), step(3, nil))
	if err := p.Execute(context.Background(), &ImportState{}); err == nil {
		t.Fatal("Execute() expected error")
	}
	if len(ran) != 2 {
		t.Errorf("ran steps %v, want [1 2]", ran)
	}
}

func TestPipeline_Done(t *testing.T) {
	var ran int
	p := NewPipeline(
		StepFunc(func(ctx context.Context, state *ImportState) error { ran++; state.Done = true; return nil }),
		StepFunc(func(ctx context.Context, state *ImportState) error { ran++; return nil }),
	)
	if err := p.Execute(context.Background(), &ImportState{}); err != nil {
		t.Fatal(err)
	}
	if ran != 1 {
		t.Errorf("ran %d steps, want 1", ran)
	}
}
