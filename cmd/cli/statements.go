package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func readStatement(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one file argument", fs.Name())
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return "", fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return string(data), nil
}

func runDetect(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := readStatement(fs)
	if err != nil {
		return err
	}

	name, ok := formats.Detect(text)
	if !ok {
		report := formats.Validate(text, formats.AutoDetect)
		fmt.Fprintf(env.out, "No format detected: %s\n", report.ErrorMessage)
		return pipeline.ErrFormatNotDetected
	}
	spec, _ := formats.Lookup(name)
	fmt.Fprintf(env.out, "%s (%s)\n", spec.Name, spec.DisplayName)
	return nil
}

func runValidate(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	format := fs.String("format", formats.AutoDetect, "Format name, or auto")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := readStatement(fs)
	if err != nil {
		return err
	}

	report := formats.Validate(text, *format)
	printValidation(env, report)
	if !report.Valid {
		return errors.New("validate: file does not match")
	}
	return nil
}

func printValidation(env *cliEnv, r formats.ValidationReport) {
	status := "valid"
	if !r.Valid {
		status = "invalid"
	}
	fmt.Fprintf(env.out, "Status:   %s\n", status)
	if r.DetectedFormat != "" {
		fmt.Fprintf(env.out, "Format:   %s\n", r.DetectedFormat)
	}
	if len(r.MissingColumns) > 0 {
		fmt.Fprintf(env.out, "Missing:  %s\n", strings.Join(r.MissingColumns, ", "))
	}
	if len(r.ExtraColumns) > 0 {
		fmt.Fprintf(env.out, "Extra:    %s\n", strings.Join(r.ExtraColumns, ", "))
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(env.out, "Error:    %s\n", r.ErrorMessage)
	}
}

func runPreview(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	rows := fs.Int("rows", formats.DefaultPreviewRows, "Number of rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := readStatement(fs)
	if err != nil {
		return err
	}

	p, err := formats.BuildPreview(text, *rows)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if p.Format != "" {
		fmt.Fprintf(env.out, "Format: %s\n\n", p.Format)
	}

	tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(p.Headers, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(env.out, "\n%d of %d rows\n", len(p.Rows), p.Total)
	return nil
}

func runImport(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	format := fs.String("format", formats.AutoDetect, "Format name, or auto")
	policyName := fs.String("policy", string(env.cfg.ImportPolicy), "Duplicate policy: skip, force or review")
	autoCategorize := fs.Bool("auto-categorize", false, "Categorize uncategorized rows")
	dryRun := fs.Bool("dry-run", false, "Analyze duplicates without inserting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("import: expected at least one file or gs:// URI")
	}

	policy, err := dedup.ParsePolicy(*policyName)
	if err != nil {
		return err
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}

	opts := pipeline.ImportOptions{
		Format:         *format,
		Policy:         policy,
		AutoCategorize: *autoCategorize,
		DryRun:         *dryRun,
	}
	if policy == dedup.PolicyReview {
		opts.Decider = newPromptDecider(env.in, env.out)
	}

	var failed int
	for _, uri := range fs.Args() {
		report, err := svc.Importer.ImportURI(ctx, uri, opts)
		if err != nil {
			fmt.Fprintf(env.out, "%s: %v\n", uri, err)
			failed++
			continue
		}
		printImportReport(env, report)
	}
	if failed > 0 {
		return fmt.Errorf("import: %d of %d files failed", failed, fs.NArg())
	}
	return nil
}

func printImportReport(env *cliEnv, r *pipeline.ImportReport) {
	fmt.Fprintf(env.out, "\n=== %s (%s) ===\n", r.File, r.Format)
	fmt.Fprintf(env.out, "Rows:        %d parsed, %d errors\n", r.Parsed, r.Errors)
	for _, e := range r.RowErrors {
		fmt.Fprintf(env.out, "  row %d: %s\n", e.Row, e.Reason)
	}
	fmt.Fprintf(env.out, "New:         %d\n", r.New)
	fmt.Fprintf(env.out, "Duplicates:  %d\n", r.Duplicates)
	fmt.Fprintf(env.out, "Ambiguous:   %d\n", r.Ambiguous)
	if r.Categorized > 0 {
		fmt.Fprintf(env.out, "Categorized: %d\n", r.Categorized)
	}
	if r.CategorizeFailures > 0 {
		fmt.Fprintf(env.out, "Categorizer failed on %d rows\n", r.CategorizeFailures)
	}
	if r.DryRun {
		fmt.Fprintln(env.out, "Dry run, nothing inserted.")
		return
	}
	fmt.Fprintf(env.out, "Inserted:    %d\n", r.Inserted)
	fmt.Fprintf(env.out, "Skipped:     %d\n", r.Skipped)
	if r.ArchiveURI != "" {
		fmt.Fprintf(env.out, "Archived to: %s\n", r.ArchiveURI)
	}
}
